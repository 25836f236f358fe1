package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jupark12/go-print-relay/models"
	"github.com/jupark12/go-print-relay/pages"
	"github.com/jupark12/go-print-relay/queue"
	"go.uber.org/zap"
)

const deviceTimeFormat = "2006-01-02 15:04:05"

type checkCommandsRequest struct {
	DeviceID string `json:"device_id"`
}

type reportRequest struct {
	DeviceID  string `json:"device_id"`
	CommandID string `json:"command_id"`
	Success   *bool  `json:"success"`
	Message   string `json:"message"`
}

type deviceView struct {
	LastSeen string `json:"last_seen"`
	Active   bool   `json:"active"`
}

// handleUpload validates an uploaded PDF with its print options and queues it
func (s *Server) handleUpload(c *gin.Context) {
	if c.Request.ContentLength > s.maxUploadBytes {
		s.rejectUpload(c, http.StatusRequestEntityTooLarge, "too_large", "File too large")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)

	if err := c.Request.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.rejectUpload(c, http.StatusRequestEntityTooLarge, "too_large", "File too large")
			return
		}
		s.rejectUpload(c, http.StatusBadRequest, "no_file", "No file part")
		return
	}

	header, reason, msg := uploadedFile(c.Request.MultipartForm)
	if header == nil {
		s.rejectUpload(c, http.StatusBadRequest, reason, msg)
		return
	}

	fileName := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(fileName), ".pdf") {
		s.rejectUpload(c, http.StatusBadRequest, "bad_extension", "Invalid file format")
		return
	}

	payment := c.PostForm("payment_flag")
	if payment == "" {
		payment = c.PostForm("upi_method")
	}
	if payment != "success" {
		s.rejectUpload(c, http.StatusBadRequest, "payment", "Payment failed")
		return
	}

	opts, err := parsePrintOptions(c)
	if err != nil {
		s.rejectUpload(c, http.StatusBadRequest, "bad_options", err.Error())
		return
	}

	doc, err := readUpload(header)
	if err != nil {
		s.logger.Error("failed to read upload", zap.String("file", fileName), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Failed to read file"})
		return
	}

	count, err := pages.PageCount(doc)
	if err != nil {
		s.rejectUpload(c, http.StatusBadRequest, "invalid_pdf", "Invalid PDF file")
		return
	}
	if _, err := pages.Resolve(opts.SelectedPages, count); err != nil {
		s.rejectUpload(c, http.StatusBadRequest, "bad_pages", err.Error())
		return
	}

	cmd, err := s.queue.Submit(c.Request.Context(), doc, fileName, opts)
	if err != nil {
		if errors.Is(err, models.ErrInvalidOptions) {
			s.rejectUpload(c, http.StatusBadRequest, "bad_options", err.Error())
			return
		}
		s.logger.Error("failed to queue command", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Server error"})
		return
	}
	s.metrics.submitted.Inc()

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"message":    "Print job submitted",
		"command_id": cmd.ID,
	})
}

func (s *Server) rejectUpload(c *gin.Context, status int, reason, message string) {
	s.metrics.uploadRejections.WithLabelValues(reason).Inc()
	c.JSON(status, gin.H{"status": "error", "message": message})
}

// uploadedFile distinguishes a missing file field from one sent without a name
func uploadedFile(form *multipart.Form) (*multipart.FileHeader, string, string) {
	if form == nil {
		return nil, "no_file", "No file part"
	}
	if files := form.File["file"]; len(files) > 0 {
		if files[0].Filename == "" {
			return nil, "no_filename", "No selected file"
		}
		return files[0], "", ""
	}
	if _, ok := form.Value["file"]; ok {
		return nil, "no_filename", "No selected file"
	}
	return nil, "no_file", "No file part"
}

func parsePrintOptions(c *gin.Context) (models.PrintOptions, error) {
	opts := models.DefaultPrintOptions()
	opts.SelectedPages = strings.TrimSpace(c.PostForm("selected_pages"))

	var err error
	if opts.NumCopies, err = intField(c, "num_copies", opts.NumCopies); err != nil {
		return opts, err
	}
	if opts.PagesPerSheet, err = intField(c, "pages_per_sheet", opts.PagesPerSheet); err != nil {
		return opts, err
	}
	if layout := strings.TrimSpace(c.PostForm("layout")); layout != "" {
		opts.Layout = models.Layout(strings.ToLower(layout))
	}

	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

func intField(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.PostForm(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// handleCheckCommands records a device check-in and hands over its commands
func (s *Server) handleCheckCommands(c *gin.Context) {
	var req checkCommandsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DeviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing device_id"})
		return
	}

	cmds, err := s.queue.Poll(c.Request.Context(), req.DeviceID)
	if err != nil {
		if errors.Is(err, queue.ErrReservedDeviceID) || errors.Is(err, queue.ErrDeviceIDRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("poll failed", zap.String("device_id", req.DeviceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	s.metrics.polls.Inc()
	s.metrics.delivered.Add(float64(len(cmds)))
	s.metrics.devicesKnown.Set(float64(s.queue.DeviceCount()))

	wire := make([]models.WireCommand, 0, len(cmds))
	for _, cmd := range cmds {
		wire = append(wire, cmd.Wire())
	}
	c.JSON(http.StatusOK, gin.H{"commands": wire})
}

// handleReport applies a device's outcome report. Unknown or already
// finished commands are still acknowledged.
func (s *Server) handleReport(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DeviceID == "" || req.CommandID == "" || req.Success == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	_, err := s.queue.Report(c.Request.Context(), req.CommandID, req.DeviceID, *req.Success, req.Message)
	switch {
	case err == nil:
		s.metrics.observeReport(*req.Success)
	case errors.Is(err, queue.ErrCommandNotFound), errors.Is(err, queue.ErrInvalidTransition):
		s.logger.Warn("ignoring report",
			zap.String("command_id", req.CommandID),
			zap.String("device_id", req.DeviceID),
			zap.Error(err))
	default:
		s.logger.Error("report failed", zap.String("command_id", req.CommandID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) handleDevices(c *gin.Context) {
	devices := s.queue.ListDevices()
	out := make(map[string]deviceView, len(devices))
	for id, d := range devices {
		out[id] = deviceView{
			LastSeen: d.LastSeen.Local().Format(deviceTimeFormat),
			Active:   d.Active,
		}
	}
	c.JSON(http.StatusOK, gin.H{"devices": out})
}

func (s *Server) handleCommands(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"commands": s.queue.ListCommands()})
}

func (s *Server) handleCommandDetails(c *gin.Context) {
	cmd, err := s.queue.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Command not found"})
		return
	}
	c.JSON(http.StatusOK, cmd.Record())
}

// handleCommandHistory reads the journal, so it also covers commands from
// earlier broker runs
func (s *Server) handleCommandHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Command history is not enabled"})
		return
	}

	id := c.Param("id")
	records, err := s.history.History(c.Request.Context(), id)
	if err != nil {
		s.logger.Error("failed to read command history", zap.String("command_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Command not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"command_id": id, "history": records})
}

func (s *Server) handleQueues(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"queues": s.queue.PendingCounts()})
}

// handleWebSocket sends the current command list, then live updates
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade to WebSocket", zap.Error(err))
		return
	}

	// written before registering so the manager is the only writer afterwards
	initialData, err := json.Marshal(map[string]interface{}{
		"type":     "initial_commands",
		"commands": s.queue.ListCommands(),
	})
	if err == nil {
		if err := conn.WriteMessage(websocket.TextMessage, initialData); err != nil {
			conn.Close()
			return
		}
	}

	s.wsManager.RegisterClient(conn)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.wsManager.UnregisterClient(conn)
				return
			}
		}
	}()
}
