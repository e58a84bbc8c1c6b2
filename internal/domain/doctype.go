package domain

import "strings"

// DocType is the closed set of document categories used for grouping and boosting.
type DocType string

const (
	DocTypeProject   DocType = "project"
	DocTypeHardware  DocType = "hardware"
	DocTypeService   DocType = "service"
	DocTypeInventory DocType = "inventory"
	DocTypeOther     DocType = "other"
)

// DocTypes lists every doc type in display order.
var DocTypes = []DocType{DocTypeProject, DocTypeHardware, DocTypeService, DocTypeInventory, DocTypeOther}

// ParseDocType maps a name (case-insensitive, singular or plural) to a DocType.
func ParseDocType(s string) (DocType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "s")
	for _, t := range DocTypes {
		if string(t) == s {
			return t, true
		}
	}
	return DocTypeOther, false
}
