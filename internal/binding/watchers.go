package binding

import (
	"github.com/evermore-app/evermore/backend/internal/docstore"
	"github.com/evermore-app/evermore/backend/internal/realtime"
	"github.com/evermore-app/evermore/backend/internal/wedding"
	"go.uber.org/zap"
)

// Invitations watches all invitations, newest first.
func (b *Binder) Invitations() (*Watcher[[]wedding.Invitation], error) {
	return listWatcher(b, realtime.KeyInvitations, realtime.InvitationsQuery(), realtime.MapInvitations)
}

// Albums watches all albums, newest first.
func (b *Binder) Albums() (*Watcher[[]wedding.Album], error) {
	return listWatcher(b, realtime.KeyAlbums, realtime.AlbumsQuery(), realtime.MapAlbums)
}

// AllMedia watches every media item, newest first.
func (b *Binder) AllMedia() (*Watcher[[]wedding.Media], error) {
	return listWatcher(b, realtime.KeyAllMedia, realtime.AllMediaQuery(), realtime.MapMedia)
}

// AlbumMedia watches one album's approved media.
func (b *Binder) AlbumMedia(albumID string) (*Watcher[[]wedding.Media], error) {
	return listWatcher(b, realtime.AlbumMediaKey(albumID), realtime.AlbumMediaQuery(albumID), realtime.MapMedia)
}

// PendingMedia watches unapproved media across all albums.
func (b *Binder) PendingMedia() (*Watcher[[]wedding.Media], error) {
	return listWatcher(b, realtime.KeyPendingMedia, realtime.PendingMediaQuery(), realtime.MapMedia)
}

// RSVPs watches all responses, most recent submission first.
func (b *Binder) RSVPs() (*Watcher[[]wedding.RSVPRecord], error) {
	return listWatcher(b, realtime.KeyRSVPs, realtime.RSVPsQuery(), realtime.MapRSVPs)
}

// RSVPsByStatus watches responses filtered by status.
func (b *Binder) RSVPsByStatus(status wedding.RSVPAnswer) (*Watcher[[]wedding.RSVPRecord], error) {
	return listWatcher(b, realtime.RSVPsByStatusKey(status), realtime.RSVPsByStatusQuery(status), realtime.MapRSVPs)
}

// InvitationByCode watches the invitation carrying the QR token. The
// snapshot reduces to first-or-absent: nil data means no match yet, never
// an error.
func (b *Binder) InvitationByCode(code string) (*Watcher[*wedding.Invitation], error) {
	return firstWatcher(b, realtime.InvitationByCodeKey(code), realtime.InvitationByCodeQuery(code), realtime.MapInvitations)
}

// AlbumByCode watches the album carrying the QR token.
func (b *Binder) AlbumByCode(code string) (*Watcher[*wedding.Album], error) {
	return firstWatcher(b, realtime.AlbumByCodeKey(code), realtime.AlbumByCodeQuery(code), realtime.MapAlbums)
}

// RSVPByCode watches the response carrying the QR token.
func (b *Binder) RSVPByCode(code string) (*Watcher[*wedding.RSVPRecord], error) {
	return firstWatcher(b, realtime.RSVPByCodeKey(code), realtime.RSVPByCodeQuery(code), realtime.MapRSVPs)
}

// Stats watches the derived aggregate over invitations, albums and media.
func (b *Binder) Stats() (*Watcher[wedding.Stats], error) {
	return newWatcher(b.service, realtime.KeyStats, func(deliver func(wedding.Stats)) error {
		return b.service.AddStatsListener(realtime.KeyStats, deliver)
	})
}

func listWatcher[T any](b *Binder, key string, query docstore.Query, mapDocuments func([]docstore.Document, *zap.Logger) []T) (*Watcher[[]T], error) {
	return newWatcher(b.service, key, func(deliver func([]T)) error {
		return b.service.AddListener(key, query, func(documents []docstore.Document) {
			deliver(mapDocuments(documents, b.logger))
		})
	})
}

func firstWatcher[T any](b *Binder, key string, query docstore.Query, mapDocuments func([]docstore.Document, *zap.Logger) []T) (*Watcher[*T], error) {
	return newWatcher(b.service, key, func(deliver func(*T)) error {
		return b.service.AddListener(key, query, func(documents []docstore.Document) {
			entities := mapDocuments(documents, b.logger)
			if len(entities) == 0 {
				deliver(nil)
				return
			}
			deliver(&entities[0])
		})
	})
}
