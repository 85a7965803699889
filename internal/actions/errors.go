// File: internal/actions/errors.go
package actions

import "errors"

// ErrClickFailed is returned by ClickAndNavigate when the click itself never
// landed, as opposed to the navigation wait failing.
var ErrClickFailed = errors.New("click action failed after all attempts")
