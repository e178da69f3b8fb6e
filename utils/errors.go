package utils

import (
	"errors"
	"fmt"
)

// Taksonomi error lintas komponen. Semua error internal komponen
// dikonversi ke salah satu tipe ini di boundary-nya.

// NotFoundError -> lookup lokal pada key yang tidak ada. Tidak pernah fatal.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

// TransportError -> jaringan tidak terjangkau, timeout, atau HTTP non-2xx.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport failure: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteRejection -> server terjangkau tetapi menjawab status != success.
// Message dipertahankan apa adanya untuk ditampilkan ke pengguna.
type RemoteRejection struct {
	Message string
}

func (e *RemoteRejection) Error() string {
	if e.Message == "" {
		return "remote rejected the request"
	}
	return e.Message
}

// StorageError -> kegagalan durable store (kuota, korupsi). Diperlakukan
// fatal untuk operasi yang bersangkutan; kehilangan aksi offline secara
// diam-diam lebih buruk daripada kegagalan yang terlihat.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var t *NotFoundError
	return errors.As(err, &t)
}

func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}

func IsRemoteRejection(err error) bool {
	var t *RemoteRejection
	return errors.As(err, &t)
}

func IsStorage(err error) bool {
	var t *StorageError
	return errors.As(err, &t)
}
