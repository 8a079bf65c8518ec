package wedding

import "time"

// RSVPAnswer enumerates the guest response states for an invitation.
type RSVPAnswer string

const (
	// RSVPPending means the guest has not answered yet.
	RSVPPending RSVPAnswer = "pending"
	// RSVPAttending means the guest confirmed attendance.
	RSVPAttending RSVPAnswer = "attending"
	// RSVPNotAttending means the guest declined.
	RSVPNotAttending RSVPAnswer = "not_attending"
)

// MediaTypeImage and MediaTypeVideo are the MIME-derived media kinds.
const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

// RSVPStatus is the response sub-record embedded in an invitation.
type RSVPStatus struct {
	Status        RSVPAnswer `json:"status"`
	AttendeeCount int        `json:"attendeeCount"`
	GuestNames    []string   `json:"guestNames"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	SubmittedAt   *time.Time `json:"submittedAt,omitempty"`
}

// Invitation is a guest invitation document. The QR code token is unique
// and immutable after creation; it is a lookup filter, not a primary key.
type Invitation struct {
	ID             string     `json:"id"`
	GuestName      string     `json:"guestName"`
	GuestRole      string     `json:"guestRole"`
	CustomMessage  string     `json:"customMessage"`
	InvitationType string     `json:"invitationType"`
	QRCode         string     `json:"qrCode"`
	IsActive       bool       `json:"isActive"`
	RSVP           RSVPStatus `json:"rsvpStatus"`
	OpenedAt       *time.Time `json:"openedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Album groups media items. Media ownership is by album identifier
// reference, never embedding.
type Album struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsPublic    bool      `json:"isPublic"`
	IsFeatured  bool      `json:"isFeatured"`
	CoverImage  string    `json:"coverImage"`
	QRCode      string    `json:"qrCode"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Media is a guest-uploaded file. Guest uploads default to unapproved and
// stay invisible to album listeners until a host approves them.
type Media struct {
	ID           string    `json:"id"`
	AlbumID      string    `json:"albumId"`
	FileName     string    `json:"fileName"`
	MediaType    string    `json:"mediaType"`
	FileSize     int64     `json:"fileSize"`
	FileURL      string    `json:"fileUrl"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	UploadedBy   string    `json:"uploadedBy"`
	IsApproved   bool      `json:"isApproved"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RSVPRecord is the standalone response projection used for host-side
// listing.
type RSVPRecord struct {
	ID            string     `json:"id"`
	InvitationID  string     `json:"invitationId"`
	QRCode        string     `json:"qrCode"`
	Status        RSVPAnswer `json:"status"`
	AttendeeCount int        `json:"attendeeCount"`
	GuestNames    []string   `json:"guestNames"`
	Email         string     `json:"email"`
	Phone         string     `json:"phone"`
	SubmittedAt   *time.Time `json:"submittedAt,omitempty"`
}

// InvitationStats summarizes the invitations collection.
type InvitationStats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Opened int `json:"opened"`
}

// AlbumStats summarizes the albums collection plus its media count.
type AlbumStats struct {
	TotalAlbums    int `json:"totalAlbums"`
	PublicAlbums   int `json:"publicAlbums"`
	FeaturedAlbums int `json:"featuredAlbums"`
	TotalMedia     int `json:"totalMedia"`
}

// MediaStats summarizes the media collection.
type MediaStats struct {
	TotalMedia int `json:"totalMedia"`
	ImageCount int `json:"imageCount"`
	VideoCount int `json:"videoCount"`
}

// Stats is a derived aggregate over the three live collections. It is
// never persisted; every value is recomputed from the latest snapshots.
type Stats struct {
	Invitations InvitationStats `json:"invitations"`
	Albums      AlbumStats      `json:"albums"`
	Media       MediaStats      `json:"media"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// ComputeStats materializes the Stats projection from the latest known
// collection snapshots.
func ComputeStats(invitations []Invitation, albums []Album, media []Media, now time.Time) Stats {
	stats := Stats{LastUpdated: now.UTC()}

	stats.Invitations.Total = len(invitations)
	for _, invitation := range invitations {
		if invitation.IsActive {
			stats.Invitations.Active++
		}
		if invitation.OpenedAt != nil {
			stats.Invitations.Opened++
		}
	}

	stats.Albums.TotalAlbums = len(albums)
	stats.Albums.TotalMedia = len(media)
	for _, album := range albums {
		if album.IsPublic {
			stats.Albums.PublicAlbums++
		}
		if album.IsFeatured {
			stats.Albums.FeaturedAlbums++
		}
	}

	stats.Media.TotalMedia = len(media)
	for _, item := range media {
		switch item.MediaType {
		case MediaTypeVideo:
			stats.Media.VideoCount++
		default:
			stats.Media.ImageCount++
		}
	}

	return stats
}
