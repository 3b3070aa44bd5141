package http

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jamroom/server/internal/app"
	"github.com/jamroom/server/internal/domain"
)

// FileStore keeps uploaded shared-audio files on disk. It implements
// app.SharedFileStore so the dispatcher can delete a file when its room
// or host goes away.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &FileStore{Dir: dir}, nil
}

func (fs *FileStore) Remove(name string) {
	if name == "" {
		return
	}
	// Base strips any path the reference could smuggle in.
	path := filepath.Join(fs.Dir, filepath.Base(name))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Error().Err(err).Str("module", "adapters.upload").Str("file", name).Msg("remove shared file")
		return
	}
	log.Info().Str("module", "adapters.upload").Str("file", name).Msg("removed shared file")
}

// UploadController accepts one shared audio file per room and announces
// it to the room. It only talks to the registry through the dispatcher's
// serialized call-in, never directly.
type UploadController struct {
	Dispatcher *app.Dispatcher
	Store      *FileStore
}

func (u *UploadController) HandleUpload(c *gin.Context) {
	room := domain.RoomName(c.Param("room"))
	if !u.Dispatcher.RoomExists(room) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Room not found"})
		return
	}

	file, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "missing audio file"})
		return
	}

	filename := fmt.Sprintf("%s-%d%s", room, time.Now().UnixMilli(), filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, filepath.Join(u.Store.Dir, filename)); err != nil {
		log.Error().Err(err).Str("module", "adapters.upload").Str("room", string(room)).Msg("save upload")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "save failed"})
		return
	}

	// The room may have emptied out while the file was streaming in.
	if err := u.Dispatcher.ShareFile(room, filename); err != nil {
		u.Store.Remove(filename)
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Room not found"})
		return
	}

	log.Info().Str("module", "adapters.upload").Str("room", string(room)).Str("file", filename).Msg("shared file uploaded")
	c.JSON(http.StatusOK, gin.H{"success": true, "filename": filename})
}
