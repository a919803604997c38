package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"platescan/internal/camera"
	"platescan/internal/detection"
	"platescan/internal/record"
)

// CameraController はカメラのライフサイクル操作
type CameraController interface {
	EnumerateDevices(ctx context.Context) ([]camera.DeviceDescriptor, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	SwitchDevice(ctx context.Context) error
	Status() camera.Status
	CurrentDeviceID() string
	LastError() error
}

// Detector は1フレームの検出
type Detector interface {
	DetectOnce(ctx context.Context) (*detection.Result, error)
	Snapshot() detection.Snapshot
}

// Handler はAPIエンドポイントを実装する
type Handler struct {
	camera      CameraController
	detector    Detector
	store       record.Store
	spec        *openapi3.T
	inputSchema *openapi3.Schema
}

// NewHandler は新しいHandlerを作成する
func NewHandler(ctx context.Context, cam CameraController, detector Detector, store record.Store) (*Handler, error) {
	spec, err := LoadSpec(ctx)
	if err != nil {
		return nil, err
	}
	inputSchema, err := schemaFor(spec, "RecordInput")
	if err != nil {
		return nil, err
	}

	return &Handler{
		camera:      cam,
		detector:    detector,
		store:       store,
		spec:        spec,
		inputSchema: inputSchema,
	}, nil
}

// HealthCheck はヘルスチェックエンドポイントの実装
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	})
}

// GetStatus はシステム状態取得エンドポイントの実装
func (h *Handler) GetStatus(c *gin.Context) {
	snapshot := h.detector.Snapshot()
	cam := h.cameraState()

	// 待機中はカメラの状態を表示する
	if snapshot.Status == detection.StatusIdle && cam.Status != camera.StatusActive {
		snapshot.Message = "Camera Off"
	}

	c.JSON(http.StatusOK, StatusResponse{
		Status:    "running",
		Camera:    cam,
		Detection: snapshot,
		Timestamp: time.Now(),
	})
}

// GetOpenAPI は埋め込みのOpenAPIドキュメントを返す
func (h *Handler) GetOpenAPI(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", openapiYAML)
}

// ListDevices はキャプチャデバイス一覧取得エンドポイントの実装
func (h *Handler) ListDevices(c *gin.Context) {
	devices, err := h.camera.EnumerateDevices(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "device_enumeration", "Failed to enumerate camera devices", err)
		return
	}

	response := DevicesResponse{
		Devices:         make([]Device, 0, len(devices)),
		CurrentDeviceID: h.camera.CurrentDeviceID(),
	}
	for _, d := range devices {
		response.Devices = append(response.Devices, Device{DeviceID: d.ID, Label: d.Label})
	}

	c.JSON(http.StatusOK, response)
}

// StartCamera はカメラ開始エンドポイントの実装
func (h *Handler) StartCamera(c *gin.Context) {
	if err := h.camera.Start(c.Request.Context()); err != nil {
		respondError(c, http.StatusServiceUnavailable, "camera_access",
			"Failed to access camera. Please ensure camera permissions are granted.", err)
		return
	}
	c.JSON(http.StatusOK, h.cameraState())
}

// StopCamera はカメラ停止エンドポイントの実装
func (h *Handler) StopCamera(c *gin.Context) {
	if err := h.camera.Stop(c.Request.Context()); err != nil {
		respondError(c, http.StatusInternalServerError, "camera_stop", "Failed to stop camera", err)
		return
	}
	c.JSON(http.StatusOK, h.cameraState())
}

// SwitchCamera はカメラ切り替えエンドポイントの実装
func (h *Handler) SwitchCamera(c *gin.Context) {
	if err := h.camera.SwitchDevice(c.Request.Context()); err != nil {
		respondError(c, http.StatusServiceUnavailable, "camera_access",
			"Failed to access camera. Please ensure camera permissions are granted.", err)
		return
	}
	c.JSON(http.StatusOK, h.cameraState())
}

// Detect は1フレームの検出エンドポイントの実装
func (h *Handler) Detect(c *gin.Context) {
	result, err := h.detector.DetectOnce(c.Request.Context())
	if err != nil {
		var rejection *detection.Rejection
		switch {
		case errors.Is(err, detection.ErrBusy):
			respondError(c, http.StatusConflict, "busy", "Detection already in progress", nil)
		case errors.As(err, &rejection):
			respondError(c, http.StatusUnprocessableEntity, string(rejection.Reason), rejection.Message, rejection.Err)
		default:
			respondError(c, http.StatusInternalServerError, "detection_failed", "Failed to process image. Please try again.", err)
		}
		return
	}

	response := DetectionResponse{
		PlateNumber: result.PlateNumber,
		Confidence:  result.Confidence,
		Timestamp:   result.Timestamp,
	}
	if result.Image != nil {
		response.ImageData = record.DataURL(result.Image.MimeType, result.Image.Data)
	}
	c.JSON(http.StatusOK, response)
}

// ListRecords は記録一覧取得エンドポイントの実装
// q でナンバーか日付を検索し、sort で並び順を指定する
func (h *Handler) ListRecords(c *gin.Context) {
	sortKey, err := record.ParseSortKey(c.Query("sort"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_parameter", "sort must be one of timestamp, plateNumber, confidence", err)
		return
	}

	records, err := h.store.List(c.Request.Context(), record.ListOptions{
		Query: c.Query("q"),
		Sort:  sortKey,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "storage", "Failed to fetch records", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(records))
}

// ListRecentRecords は最近の記録取得エンドポイントの実装
func (h *Handler) ListRecentRecords(c *gin.Context) {
	limit := record.DefaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(c, http.StatusBadRequest, "invalid_parameter", "limit must be a positive integer", err)
			return
		}
		limit = n
	}

	records, err := h.store.Recent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "storage", "Failed to fetch recent records", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(records))
}

// CreateRecord は記録作成エンドポイントの実装
func (h *Handler) CreateRecord(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_body", "Invalid data", err)
		return
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_body", "Invalid data", err)
		return
	}
	if err := h.inputSchema.VisitJSON(raw); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_body", "Invalid data", err)
		return
	}

	var in record.Input
	if err := json.Unmarshal(body, &in); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_body", "Invalid data", err)
		return
	}

	rec, err := h.store.Create(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, record.ErrInvalidInput) {
			respondError(c, http.StatusBadRequest, "invalid_body", "Invalid data", err)
			return
		}
		respondError(c, http.StatusInternalServerError, "storage", "Failed to create record", err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// GetRecord は記録取得エンドポイントの実装
func (h *Handler) GetRecord(c *gin.Context) {
	id, ok := bindRecordID(c)
	if !ok {
		return
	}

	rec, err := h.store.Get(c.Request.Context(), id.String())
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			respondError(c, http.StatusNotFound, "record_not_found", "Record not found", nil)
			return
		}
		respondError(c, http.StatusInternalServerError, "storage", "Failed to fetch record", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// DeleteRecord は記録削除エンドポイントの実装
func (h *Handler) DeleteRecord(c *gin.Context) {
	id, ok := bindRecordID(c)
	if !ok {
		return
	}

	deleted, err := h.store.Delete(c.Request.Context(), id.String())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "storage", "Failed to delete record", err)
		return
	}
	if !deleted {
		respondError(c, http.StatusNotFound, "record_not_found", "Record not found", nil)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Record deleted successfully"})
}

// GetStats は統計取得エンドポイントの実装
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "storage", "Failed to fetch statistics", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ExportRecords はCSVエクスポートエンドポイントの実装
func (h *Handler) ExportRecords(c *gin.Context) {
	records, err := h.store.List(c.Request.Context(), record.ListOptions{})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "storage", "Failed to export records", err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", `attachment; filename="`+record.ExportFilename(time.Now())+`"`)
	c.Status(http.StatusOK)
	if err := record.WriteCSV(c.Writer, records); err != nil {
		log.Printf("CSVの書き出しに失敗: %v", err)
	}
}

// ヘルパー関数

func (h *Handler) cameraState() CameraState {
	state := CameraState{
		Status:   h.camera.Status(),
		DeviceID: h.camera.CurrentDeviceID(),
	}
	if state.Status == camera.StatusError {
		if err := h.camera.LastError(); err != nil {
			state.Error = err.Error()
		}
	}
	return state
}

// bindRecordID はパスパラメータ id をUUIDとして取り出す
func bindRecordID(c *gin.Context) (openapi_types.UUID, bool) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", c.Param("id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_parameter", "Invalid format for parameter id", err)
		return id, false
	}
	return id, true
}

// respondError はエラーレスポンスを返す
func respondError(c *gin.Context, status int, code, message string, err error) {
	response := ErrorResponse{
		Error:     code,
		Message:   message,
		Timestamp: time.Now(),
	}
	if err != nil {
		response.Details = stringPtr(err.Error())
	}
	c.JSON(status, response)
}

// stringPtr は文字列のポインタを返すヘルパー関数
func stringPtr(s string) *string {
	return &s
}

// nonNil は空の一覧を null ではなく [] として返すためのヘルパー関数
func nonNil(records []record.Record) []record.Record {
	if records == nil {
		return []record.Record{}
	}
	return records
}
