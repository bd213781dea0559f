package util

import "os"

// $EDITOR first, otherwise whatever the desktop associates with the file
func defaultEditor() string {
	if editor := os.Getenv("EDITOR"); editor != "" {
		return editor
	}

	return "xdg-open"
}
