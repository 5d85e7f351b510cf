package handler

import (
	"fmt"
	"regexp"
	"strconv"
	"text/template"
)

var numericToken = regexp.MustCompile(`^[0-9]+$`)

// jsToken echoes the editor's callback reference. Numbers go out verbatim,
// anything else as an escaped string literal.
func jsToken(funcNum string) string {
	if numericToken.MatchString(funcNum) {
		return funcNum
	}
	return "'" + template.JSEscapeString(funcNum) + "'"
}

func callbackScript(funcNum, url string) string {
	return fmt.Sprintf("window.parent.CKEDITOR.tools.callFunction(%s, '%s');", jsToken(funcNum), template.JSEscapeString(url))
}

func alertScript(funcNum, message string) string {
	return fmt.Sprintf("alert('%s');\nwindow.parent.CKEDITOR.tools.callFunction(%s);", template.JSEscapeString(message), jsToken(funcNum))
}

func formatUploadLimit(bytes int64) string {
	const mb = 1024 * 1024
	if bytes <= 0 {
		return "0MB"
	}
	value := bytes / mb
	if value <= 0 {
		value = 1
	}
	return strconv.FormatInt(value, 10) + "MB"
}
