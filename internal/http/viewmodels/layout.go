package viewmodels

type LayoutData struct {
	Title      string
	CSRFToken  string
	UserEmail  string
	UserName   string
	UserRole   string
	IsAdmin    bool
	IsVendor   bool
	Toast      *ToastViewData
	ActivePath string
}

// ToastViewData is a one-shot notification carried across a redirect.
type ToastViewData struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}
