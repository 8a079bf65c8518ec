package realtime

import (
	"github.com/evermore-app/evermore/backend/internal/docstore"
	"github.com/evermore-app/evermore/backend/internal/wedding"
)

// Well-known subscription keys for the unparameterized listeners.
const (
	KeyInvitations  = "invitations"
	KeyAlbums       = "albums"
	KeyAllMedia     = "media-all"
	KeyPendingMedia = "media-pending"
	KeyRSVPs        = "rsvps"
	KeyStats        = "stats"
)

const (
	fieldAlbumID     = "albumId"
	fieldIsApproved  = "isApproved"
	fieldQRCode      = "qrCode"
	fieldStatus      = "status"
	fieldCreatedAt   = "createdAt"
	fieldSubmittedAt = "submittedAt"
)

// AlbumMediaKey derives the subscription key for one album's approved media.
func AlbumMediaKey(albumID string) string {
	return "media-album-" + albumID
}

// InvitationByCodeKey derives the subscription key for a QR token lookup.
func InvitationByCodeKey(code string) string {
	return "invitation-qr-" + code
}

// AlbumByCodeKey derives the subscription key for a QR token lookup.
func AlbumByCodeKey(code string) string {
	return "album-qr-" + code
}

// RSVPByCodeKey derives the subscription key for a QR token lookup.
func RSVPByCodeKey(code string) string {
	return "rsvp-qr-" + code
}

// RSVPsByStatusKey derives the subscription key for a status-filtered list.
func RSVPsByStatusKey(status wedding.RSVPAnswer) string {
	return "rsvps-status-" + string(status)
}

// InvitationsQuery lists all invitations, newest first.
func InvitationsQuery() docstore.Query {
	return docstore.Query{
		Collection: wedding.CollectionInvitations,
		OrderBy:    fieldCreatedAt,
		Descending: true,
	}
}

// AlbumsQuery lists all albums, newest first.
func AlbumsQuery() docstore.Query {
	return docstore.Query{
		Collection: wedding.CollectionAlbums,
		OrderBy:    fieldCreatedAt,
		Descending: true,
	}
}

// AllMediaQuery lists every media item, newest first.
func AllMediaQuery() docstore.Query {
	return docstore.Query{
		Collection: wedding.CollectionMedia,
		OrderBy:    fieldCreatedAt,
		Descending: true,
	}
}

// AlbumMediaQuery lists one album's approved media, newest first.
// Unapproved items are excluded by filter, not merely sorted away: guests
// must never see pending uploads through the album listener.
func AlbumMediaQuery(albumID string) docstore.Query {
	return docstore.Query{
		Collection: wedding.CollectionMedia,
		Filters: []docstore.Filter{
			{Field: fieldAlbumID, Op: docstore.OpEqual, Value: albumID},
			{Field: fieldIsApproved, Op: docstore.OpEqual, Value: true},
		},
		OrderBy:    fieldCreatedAt,
		Descending: true,
	}
}

// PendingMediaQuery lists unapproved media across all albums, newest first.
// Structural complement of AlbumMediaQuery, scoped globally.
func PendingMediaQuery() docstore.Query {
	return docstore.Query{
		Collection: wedding.CollectionMedia,
		Filters: []docstore.Filter{
			{Field: fieldIsApproved, Op: docstore.OpEqual, Value: false},
		},
		OrderBy:    fieldCreatedAt,
		Descending: true,
	}
}

// RSVPsQuery lists all responses, most recent submission first.
func RSVPsQuery() docstore.Query {
	return docstore.Query{
		Collection: wedding.CollectionRSVP,
		OrderBy:    fieldSubmittedAt,
		Descending: true,
	}
}

// RSVPsByStatusQuery lists responses with the given status, most recent
// submission first.
func RSVPsByStatusQuery(status wedding.RSVPAnswer) docstore.Query {
	return docstore.Query{
		Collection: wedding.CollectionRSVP,
		Filters: []docstore.Filter{
			{Field: fieldStatus, Op: docstore.OpEqual, Value: string(status)},
		},
		OrderBy:    fieldSubmittedAt,
		Descending: true,
	}
}

// InvitationByCodeQuery looks an invitation up by its QR token. Token
// lookups are filtered limit-1 queries, not point reads: they resolve only
// once the index reflects the matching document.
func InvitationByCodeQuery(code string) docstore.Query {
	return byCodeQuery(wedding.CollectionInvitations, code)
}

// AlbumByCodeQuery looks an album up by its QR token.
func AlbumByCodeQuery(code string) docstore.Query {
	return byCodeQuery(wedding.CollectionAlbums, code)
}

// RSVPByCodeQuery looks a response up by its QR token.
func RSVPByCodeQuery(code string) docstore.Query {
	return byCodeQuery(wedding.CollectionRSVP, code)
}

func byCodeQuery(collection, code string) docstore.Query {
	return docstore.Query{
		Collection: collection,
		Filters: []docstore.Filter{
			{Field: fieldQRCode, Op: docstore.OpEqual, Value: code},
		},
		Limit: 1,
	}
}
