package utils

// ResponseData is the standard envelope for every JSON API response.
// The reliability middleware may attach a `_reliability` block on top of
// this shape before the bytes leave the process.
type ResponseData struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Results any    `json:"results,omitempty"`
}

// PanicIfNeeded panics when err is non-nil so the recovery middleware can
// translate it into a structured response. Handlers use this for flows where
// the error has already been classified (apperror types).
func PanicIfNeeded(err error) {
	if err != nil {
		panic(err)
	}
}
