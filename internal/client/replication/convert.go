package replication

import (
	"github.com/iudanet/boardsync/internal/models"
	"github.com/iudanet/boardsync/pkg/api"
)

// fromWire конвертирует wire-запись во внутреннюю модель
func fromWire(doc *api.Document) *models.Document {
	return &models.Document{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Payload:   doc.Payload,
		UpdatedAt: doc.UpdatedAt,
		Deleted:   doc.Deleted,
	}
}

// toWire конвертирует внутреннюю модель в wire-запись
func toWire(doc *models.Document) *api.Document {
	return &api.Document{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Payload:   doc.Payload,
		UpdatedAt: doc.UpdatedAt,
		Deleted:   doc.Deleted,
	}
}
