package models

// SyncMeta adalah slot key-value sederhana di luar entity store,
// dipakai untuk nilai skalar seperti waktu sinkronisasi terakhir.
type SyncMeta struct {
	Key   string `gorm:"primaryKey;type:varchar(50)"`
	Value string `gorm:"type:text"`
}

const MetaLastSyncTime = "lastSyncTime"
