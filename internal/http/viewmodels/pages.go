package viewmodels

type HomeViewData struct {
	Layout   LayoutData
	SignedIn bool
	HomeHref string
}

type WaitingRoomViewData struct {
	Layout LayoutData
	Name   string
}

type UnauthorizedViewData struct {
	Layout   LayoutData
	SignedIn bool
}
