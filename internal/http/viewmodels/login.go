package viewmodels

type SignInViewData struct {
	CSRFToken    string
	Email        string
	Next         string
	ErrorMessage string
	Toast        *ToastViewData
}

type SignUpViewData struct {
	CSRFToken    string
	Name         string
	Email        string
	ErrorMessage string
	Toast        *ToastViewData
}
