package server

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/CK6170/motebridge/internal/upload"
	"github.com/CK6170/motebridge/serial"
)

const (
	maxUploadMemory = 8 << 20
	maxImageSize    = 4 << 20
)

var (
	errNothingToUpload = errors.New("neither an image file nor source code was submitted")
	errNoDevice        = errors.New("no mote selected")
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		st := s.startHTML(w, r, http.StatusOK)
		s.writeHeader(st, "upload", bodyGeneric, nil)
		s.updateSelection(r.URL.Query()["device"])
		s.writeDeviceForm(st, "Upload", true)
		s.writeBody(st, "upload", nil)
		s.writeFooter(st)
	case http.MethodPost:
		s.handleUploadPost(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// uploadRequest is what a POSTed upload form carries.
type uploadRequest struct {
	image   []byte
	source  upload.Source
	devices []string
}

func parseUploadForm(r *http.Request) (*uploadRequest, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, fmt.Errorf("parse upload form: %w", err)
	}
	req := &uploadRequest{devices: r.MultipartForm.Value["device"]}
	if f, _, err := r.FormFile("file"); err == nil {
		defer f.Close()
		img, err := readImage(f)
		if err != nil {
			return nil, err
		}
		req.image = img
	} else if !errors.Is(err, http.ErrMissingFile) {
		return nil, fmt.Errorf("read image: %w", err)
	}
	req.source = upload.Source{
		Code:   r.FormValue("code"),
		Config: r.FormValue("config"),
	}
	return req, nil
}

func readImage(f multipart.File) ([]byte, error) {
	img, err := io.ReadAll(io.LimitReader(f, maxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(img) > maxImageSize {
		return nil, fmt.Errorf("image larger than %d bytes", maxImageSize)
	}
	return img, nil
}

func (s *Server) handleUploadPost(w http.ResponseWriter, r *http.Request) {
	rec := UploadRecord{Started: time.Now()}
	req, err := parseUploadForm(r)
	if err == nil {
		s.updateSelection(req.devices)
		rec.Devices = s.state.Selected(s.devices)
		// Unknown names are kept so the result reports them.
		for _, d := range req.devices {
			d = strings.TrimSpace(d)
			if d != "" && !slices.Contains(rec.Devices, d) {
				rec.Devices = append(rec.Devices, d)
			}
		}
		err = s.runUpload(r, req, &rec)
	}
	if err != nil {
		rec.Code = int(serial.CodeIOError)
		rec.Error = err.Error()
	}
	rec.Finished = time.Now()
	s.history.Add(&rec)
	s.metrics.Upload(serial.ResultCode(rec.Code))

	st := s.startHTML(w, r, http.StatusOK)
	s.writeHeader(st, "upload", bodyGeneric, nil)
	s.writeDeviceForm(st, "Upload", true)
	if rec.Code == int(serial.CodeOK) {
		s.writeBody(st, "upload-done", map[string]string{"UPLOAD_ID": rec.ID})
	} else {
		s.writeBody(st, "upload-error", map[string]string{
			"UPLOAD_ID":     rec.ID,
			"UPLOAD_CODE":   fmt.Sprint(rec.Code),
			"UPLOAD_DETAIL": html.EscapeString(rec.detail()),
		})
	}
	s.writeFooter(st)
}

// runUpload flashes the image when one was sent and builds the source
// otherwise. The flash outlives the request: a browser that goes away must
// not leave a mote half written.
func (s *Server) runUpload(r *http.Request, req *uploadRequest, rec *UploadRecord) error {
	if len(req.image) == 0 && strings.TrimSpace(req.source.Code) == "" {
		return errNothingToUpload
	}
	if len(rec.Devices) == 0 {
		return errNoDevice
	}

	ctx := context.WithoutCancel(r.Context())
	if s.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.uploadTimeout)
		defer cancel()
	}

	var (
		code    serial.ResultCode
		results []upload.DeviceResult
		err     error
	)
	if len(req.image) > 0 {
		rec.Kind = uploadKindImage
		code, results = s.uploader.Upload(ctx, req.image, rec.Devices)
	} else {
		rec.Kind = uploadKindSource
		code, results, err = s.uploader.Build(ctx, req.source, rec.Devices)
	}
	rec.Code = int(code)
	rec.Results = toDTO(results)
	s.logger.Info("Upload finished",
		zap.String("kind", string(rec.Kind)),
		zap.Strings("devices", rec.Devices),
		zap.Int("code", rec.Code))
	return err
}

func toDTO(results []upload.DeviceResult) []DeviceResultDTO {
	out := make([]DeviceResultDTO, 0, len(results))
	for _, r := range results {
		d := DeviceResultDTO{Device: r.Device, Code: int(r.Code)}
		if r.Err != nil {
			d.Error = r.Err.Error()
		}
		out = append(out, d)
	}
	return out
}
