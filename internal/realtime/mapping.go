package realtime

import (
	"github.com/evermore-app/evermore/backend/internal/docstore"
	"github.com/evermore-app/evermore/backend/internal/wedding"
	"go.uber.org/zap"
)

// The mapping functions decode raw documents at the subscription boundary.
// Malformed documents are logged and skipped so untyped data never crosses
// into the rest of the system.

// MapInvitations decodes a snapshot into invitation records.
func MapInvitations(documents []docstore.Document, logger *zap.Logger) []wedding.Invitation {
	invitations := make([]wedding.Invitation, 0, len(documents))
	for _, document := range documents {
		invitation, err := wedding.DecodeInvitation(document.ID, document.Data)
		if err != nil {
			warnMalformed(logger, wedding.CollectionInvitations, document.ID, err)
			continue
		}
		invitations = append(invitations, invitation)
	}
	return invitations
}

// MapAlbums decodes a snapshot into album records.
func MapAlbums(documents []docstore.Document, logger *zap.Logger) []wedding.Album {
	albums := make([]wedding.Album, 0, len(documents))
	for _, document := range documents {
		album, err := wedding.DecodeAlbum(document.ID, document.Data)
		if err != nil {
			warnMalformed(logger, wedding.CollectionAlbums, document.ID, err)
			continue
		}
		albums = append(albums, album)
	}
	return albums
}

// MapMedia decodes a snapshot into media records.
func MapMedia(documents []docstore.Document, logger *zap.Logger) []wedding.Media {
	items := make([]wedding.Media, 0, len(documents))
	for _, document := range documents {
		item, err := wedding.DecodeMedia(document.ID, document.Data)
		if err != nil {
			warnMalformed(logger, wedding.CollectionMedia, document.ID, err)
			continue
		}
		items = append(items, item)
	}
	return items
}

// MapRSVPs decodes a snapshot into response projections.
func MapRSVPs(documents []docstore.Document, logger *zap.Logger) []wedding.RSVPRecord {
	records := make([]wedding.RSVPRecord, 0, len(documents))
	for _, document := range documents {
		record, err := wedding.DecodeRSVP(document.ID, document.Data)
		if err != nil {
			warnMalformed(logger, wedding.CollectionRSVP, document.ID, err)
			continue
		}
		records = append(records, record)
	}
	return records
}

func warnMalformed(logger *zap.Logger, collection, documentID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("malformed document skipped",
		zap.String("collection", collection),
		zap.String("document_id", documentID),
		zap.Error(err))
}
