package wedding

import (
	"errors"
	"fmt"
	"time"
)

// Collection names consumed from the document database.
const (
	CollectionInvitations = "invitations"
	CollectionAlbums      = "albums"
	CollectionMedia       = "media"
	CollectionRSVP        = "rsvp"
)

var (
	// ErrMissingDocumentID indicates a document arrived without its
	// database-assigned identifier.
	ErrMissingDocumentID = errors.New("wedding: missing document id")
	// ErrMissingDocumentData indicates a document arrived with no fields.
	ErrMissingDocumentData = errors.New("wedding: missing document data")
)

// DecodeInvitation maps a raw invitation document into a typed record.
func DecodeInvitation(id string, data map[string]any) (Invitation, error) {
	if id == "" {
		return Invitation{}, ErrMissingDocumentID
	}
	if data == nil {
		return Invitation{}, fmt.Errorf("%w: invitation %s", ErrMissingDocumentData, id)
	}
	invitation := Invitation{
		ID:             id,
		GuestName:      stringField(data, "guestName"),
		GuestRole:      stringField(data, "guestRole"),
		CustomMessage:  stringField(data, "customMessage"),
		InvitationType: stringField(data, "invitationType"),
		QRCode:         stringField(data, "qrCode"),
		IsActive:       boolField(data, "isActive"),
		OpenedAt:       timePointerField(data, "openedAt"),
		CreatedAt:      timeField(data, "createdAt"),
		UpdatedAt:      timeField(data, "updatedAt"),
	}
	if nested, ok := data["rsvpStatus"].(map[string]any); ok {
		invitation.RSVP = decodeRSVPStatus(nested)
	} else {
		invitation.RSVP = RSVPStatus{Status: RSVPPending}
	}
	return invitation, nil
}

// DecodeAlbum maps a raw album document into a typed record.
func DecodeAlbum(id string, data map[string]any) (Album, error) {
	if id == "" {
		return Album{}, ErrMissingDocumentID
	}
	if data == nil {
		return Album{}, fmt.Errorf("%w: album %s", ErrMissingDocumentData, id)
	}
	return Album{
		ID:          id,
		Name:        stringField(data, "name"),
		Description: stringField(data, "description"),
		IsPublic:    boolField(data, "isPublic"),
		IsFeatured:  boolField(data, "isFeatured"),
		CoverImage:  stringField(data, "coverImage"),
		QRCode:      stringField(data, "qrCode"),
		CreatedBy:   stringField(data, "createdBy"),
		CreatedAt:   timeField(data, "createdAt"),
		UpdatedAt:   timeField(data, "updatedAt"),
	}, nil
}

// DecodeMedia maps a raw media document into a typed record.
func DecodeMedia(id string, data map[string]any) (Media, error) {
	if id == "" {
		return Media{}, ErrMissingDocumentID
	}
	if data == nil {
		return Media{}, fmt.Errorf("%w: media %s", ErrMissingDocumentData, id)
	}
	return Media{
		ID:           id,
		AlbumID:      stringField(data, "albumId"),
		FileName:     stringField(data, "fileName"),
		MediaType:    stringField(data, "mediaType"),
		FileSize:     intField(data, "fileSize"),
		FileURL:      stringField(data, "fileUrl"),
		ThumbnailURL: stringField(data, "thumbnailUrl"),
		UploadedBy:   stringField(data, "uploadedBy"),
		IsApproved:   boolField(data, "isApproved"),
		CreatedAt:    timeField(data, "createdAt"),
		UpdatedAt:    timeField(data, "updatedAt"),
	}, nil
}

// DecodeRSVP maps a raw response document into the host-side projection.
func DecodeRSVP(id string, data map[string]any) (RSVPRecord, error) {
	if id == "" {
		return RSVPRecord{}, ErrMissingDocumentID
	}
	if data == nil {
		return RSVPRecord{}, fmt.Errorf("%w: rsvp %s", ErrMissingDocumentData, id)
	}
	status := decodeRSVPStatus(data)
	return RSVPRecord{
		ID:            id,
		InvitationID:  stringField(data, "invitationId"),
		QRCode:        stringField(data, "qrCode"),
		Status:        status.Status,
		AttendeeCount: status.AttendeeCount,
		GuestNames:    status.GuestNames,
		Email:         status.Email,
		Phone:         status.Phone,
		SubmittedAt:   status.SubmittedAt,
	}, nil
}

func decodeRSVPStatus(data map[string]any) RSVPStatus {
	status := RSVPStatus{
		Status:        RSVPAnswer(stringField(data, "status")),
		AttendeeCount: int(intField(data, "attendeeCount")),
		GuestNames:    stringSliceField(data, "guestNames"),
		Email:         stringField(data, "email"),
		Phone:         stringField(data, "phone"),
		SubmittedAt:   timePointerField(data, "submittedAt"),
	}
	if status.Status == "" {
		status.Status = RSVPPending
	}
	return status
}

func stringField(data map[string]any, key string) string {
	value, _ := data[key].(string)
	return value
}

func boolField(data map[string]any, key string) bool {
	value, _ := data[key].(bool)
	return value
}

func intField(data map[string]any, key string) int64 {
	switch value := data[key].(type) {
	case int64:
		return value
	case int:
		return int64(value)
	case float64:
		return int64(value)
	default:
		return 0
	}
}

func stringSliceField(data map[string]any, key string) []string {
	switch value := data[key].(type) {
	case []string:
		return value
	case []any:
		names := make([]string, 0, len(value))
		for _, item := range value {
			if name, ok := item.(string); ok {
				names = append(names, name)
			}
		}
		return names
	default:
		return nil
	}
}

// timeField tolerates the timestamp shapes seen across document sources:
// native time values, RFC 3339 strings and unix seconds.
func timeField(data map[string]any, key string) time.Time {
	switch value := data[key].(type) {
	case time.Time:
		return value.UTC()
	case string:
		parsed, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return time.Time{}
		}
		return parsed.UTC()
	case int64:
		return time.Unix(value, 0).UTC()
	case float64:
		return time.Unix(int64(value), 0).UTC()
	default:
		return time.Time{}
	}
}

func timePointerField(data map[string]any, key string) *time.Time {
	if _, present := data[key]; !present {
		return nil
	}
	if data[key] == nil {
		return nil
	}
	parsed := timeField(data, key)
	if parsed.IsZero() {
		return nil
	}
	return &parsed
}
