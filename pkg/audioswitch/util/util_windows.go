package util

func defaultEditor() string {
	return "notepad.exe"
}
