package domain

import dErrors "medvault/pkg/domain-errors"

// ItemCategory classifies a shareable health record item.
type ItemCategory string

const (
	CategoryLab          ItemCategory = "lab"
	CategoryImaging      ItemCategory = "imaging"
	CategoryPrescription ItemCategory = "prescription"
	CategoryClinicalNote ItemCategory = "clinical-note"
	CategoryProfileField ItemCategory = "profile-field"
	CategoryDocument     ItemCategory = "document"
	CategoryOther        ItemCategory = "other"
)

var validCategories = map[ItemCategory]bool{
	CategoryLab:          true,
	CategoryImaging:      true,
	CategoryPrescription: true,
	CategoryClinicalNote: true,
	CategoryProfileField: true,
	CategoryDocument:     true,
	CategoryOther:        true,
}

// ParseItemCategory constructs an ItemCategory from external input.
func ParseItemCategory(s string) (ItemCategory, error) {
	c := ItemCategory(s)
	if !validCategories[c] {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid item category %q", s)
	}
	return c, nil
}

func (c ItemCategory) String() string { return string(c) }

// ItemSource records where an item came from: a profile field the owner
// entered directly, or a reference to an uploaded document.
type ItemSource string

const (
	SourceProfile  ItemSource = "profile"
	SourceDocument ItemSource = "document"
)

// ParseItemSource constructs an ItemSource from external input.
func ParseItemSource(s string) (ItemSource, error) {
	src := ItemSource(s)
	if src != SourceProfile && src != SourceDocument {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid item source %q", s)
	}
	return src, nil
}

// AccessType is the mode of access a requester asks for per item. Write is
// accepted on requests but reserved for future use; grants only ever confer
// read visibility.
type AccessType string

const (
	AccessRead  AccessType = "read"
	AccessWrite AccessType = "write"
)

// ParseAccessType constructs an AccessType from external input.
func ParseAccessType(s string) (AccessType, error) {
	a := AccessType(s)
	if a != AccessRead && a != AccessWrite {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid access type %q", s)
	}
	return a, nil
}

// RequesterType labels the kind of external entity asking for access.
type RequesterType string

const (
	RequesterDoctor     RequesterType = "doctor"
	RequesterHospital   RequesterType = "hospital"
	RequesterInsurer    RequesterType = "insurer"
	RequesterResearcher RequesterType = "researcher"
	RequesterOther      RequesterType = "other"
)

var validRequesterTypes = map[RequesterType]bool{
	RequesterDoctor:     true,
	RequesterHospital:   true,
	RequesterInsurer:    true,
	RequesterResearcher: true,
	RequesterOther:      true,
}

// ParseRequesterType constructs a RequesterType from external input.
func ParseRequesterType(s string) (RequesterType, error) {
	t := RequesterType(s)
	if !validRequesterTypes[t] {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid requester type %q", s)
	}
	return t, nil
}
