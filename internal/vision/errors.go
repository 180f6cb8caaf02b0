package vision

import "errors"

// Sentinel errors for template matching and the template store.
var (
	// ErrTemplateNotFound indicates no image file exists for a template name.
	ErrTemplateNotFound = errors.New("vision: template not found")

	// ErrTemplateDir indicates the template root directory is unusable.
	ErrTemplateDir = errors.New("vision: template directory unavailable")

	// ErrTemplateTooLarge indicates the template exceeds the screen bounds.
	ErrTemplateTooLarge = errors.New("vision: template larger than screen")
)
