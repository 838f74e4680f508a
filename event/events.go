package event

import (
	"draftflow/idgen"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	idWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	EventPersistCreateFunc = persistCreate
)

// CreateEvent appends an audit record within the caller's transaction, so a
// rolled back mutation leaves no trace behind.
func CreateEvent(sourceType string, sourceId types.ID, sourceDesc string, category EventCategory,
	updatedProperties []UpdatedProperty, actorName string, db *gorm.DB) error {

	record := EventRecord{
		ID: idgen.NextID(idWorker),
		Event: Event{
			SourceType: sourceType,
			SourceId:   sourceId,
			SourceDesc: sourceDesc,

			EventCategory:     category,
			UpdatedProperties: updatedProperties,
			ActorName:         actorName,
		},
		Timestamp: types.CurrentTimestamp(),
	}
	return EventPersistCreateFunc(&record, db)
}

func persistCreate(record *EventRecord, db *gorm.DB) error {
	return db.Create(record).Error
}
