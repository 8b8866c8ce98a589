package binary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net/http"

	"github.com/S1riyS/vifs/internal/models"
)

// NameSize is the fixed width of names and paths on the wire.
const NameSize = 256

func EncodeNodeMeta(meta *models.NodeMeta) ([]byte, error) {
	buf := new(bytes.Buffer)

	// ino (int64, 8 bytes)
	if err := binary.Write(buf, binary.LittleEndian, meta.Ino); err != nil {
		return nil, fmt.Errorf("failed to encode ino: %w", err)
	}

	// type (int16, 2 bytes)
	if err := binary.Write(buf, binary.LittleEndian, int16(meta.Type)); err != nil {
		return nil, fmt.Errorf("failed to encode type: %w", err)
	}

	// fs (uint8, 1 byte)
	if err := buf.WriteByte(meta.FS); err != nil {
		return nil, fmt.Errorf("failed to encode fs: %w", err)
	}

	// mount_point (uint8, 1 byte)
	var mp byte
	if meta.MountPoint {
		mp = 1
	}
	if err := buf.WriteByte(mp); err != nil {
		return nil, fmt.Errorf("failed to encode mount_point: %w", err)
	}

	// size (int64, 8 bytes)
	if err := binary.Write(buf, binary.LittleEndian, meta.Size); err != nil {
		return nil, fmt.Errorf("failed to encode size: %w", err)
	}

	return buf.Bytes(), nil
}

func writeName(buf *bytes.Buffer, name string) error {
	// char[256], null-terminated, padded with zeros
	if len(name) >= NameSize {
		return fmt.Errorf("name %q longer than %d bytes", name, NameSize-1)
	}
	nameBytes := make([]byte, NameSize)
	copy(nameBytes, name)
	_, err := buf.Write(nameBytes)
	return err
}

func EncodeDirent(dirent *models.Dirent) ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := writeName(buf, dirent.Name); err != nil {
		return nil, fmt.Errorf("failed to encode name: %w", err)
	}

	// ino (int64, 8 bytes)
	if err := binary.Write(buf, binary.LittleEndian, dirent.Ino); err != nil {
		return nil, fmt.Errorf("failed to encode ino: %w", err)
	}

	// type (int16, 2 bytes)
	if err := binary.Write(buf, binary.LittleEndian, int16(dirent.Type)); err != nil {
		return nil, fmt.Errorf("failed to encode type: %w", err)
	}

	return buf.Bytes(), nil
}

// EncodeDirents writes a uint32 count followed by each entry.
func EncodeDirents(dirents []models.Dirent) ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := binary.Write(buf, binary.LittleEndian, uint32(len(dirents))); err != nil {
		return nil, fmt.Errorf("failed to encode count: %w", err)
	}

	for i := range dirents {
		data, err := EncodeDirent(&dirents[i])
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}

	return buf.Bytes(), nil
}

func EncodeMountPoints(mounts []models.MountPoint) ([]byte, error) {
	buf := new(bytes.Buffer)

	if err := binary.Write(buf, binary.LittleEndian, uint32(len(mounts))); err != nil {
		return nil, fmt.Errorf("failed to encode count: %w", err)
	}

	for _, m := range mounts {
		if err := writeName(buf, m.Path); err != nil {
			return nil, fmt.Errorf("failed to encode path: %w", err)
		}
		if err := binary.Write(buf, binary.LittleEndian, m.Ino); err != nil {
			return nil, fmt.Errorf("failed to encode ino: %w", err)
		}
		if err := buf.WriteByte(m.FS); err != nil {
			return nil, fmt.Errorf("failed to encode fs: %w", err)
		}
	}

	return buf.Bytes(), nil
}

func WriteResponse(w http.ResponseWriter, code int64, data []byte) error {
	response := new(bytes.Buffer)

	// Return code (int64, 8 bytes)
	if err := binary.Write(response, binary.LittleEndian, code); err != nil {
		return fmt.Errorf("failed to write response code: %w", err)
	}

	// Payload, if any
	if data != nil {
		if _, err := response.Write(data); err != nil {
			return fmt.Errorf("failed to write response data: %w", err)
		}
	}

	body := response.Bytes()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)

	_, err := w.Write(body)
	return err
}

func WriteInt64Response(w http.ResponseWriter, code int64, value int64) error {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, value); err != nil {
		return err
	}
	return WriteResponse(w, code, buf.Bytes())
}
