package server

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/gift"
)

const (
	// streamInterval paces the preview stream at about 15 FPS.
	streamInterval = 66 * time.Millisecond
	// streamMaxWidth is the width previews are scaled down to.
	streamMaxWidth = 640
	// streamKeepalive forces a frame out even when nothing changed.
	streamKeepalive = 2 * time.Second
	// maxHashDistance is the perceptual hash distance at or below which two
	// previews count as the same picture.
	maxHashDistance = 0
)

// PreviewSource yields the latest annotated tracker frame.
type PreviewSource interface {
	Preview() (image.Image, time.Time, bool)
}

// StreamHandler serves the tracker preview as MJPEG.
type StreamHandler struct {
	source PreviewSource
}

// NewStreamHandler creates a new StreamHandler reading from source.
func NewStreamHandler(source PreviewSource) *StreamHandler {
	return &StreamHandler{source: source}
}

// ServeHTTP streams MJPEG frames until the client goes away. Frames that
// look the same as the last one sent are skipped.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var enc frameEncoder
	for {
		if buf, ok := enc.next(h.source, time.Now()); ok {
			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(buf))
			w.Write(buf)
			fmt.Fprintf(w, "\r\n")

			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// frameEncoder turns previews into JPEGs for one client and remembers what
// it last sent.
type frameEncoder struct {
	taken    time.Time
	hash     *goimagehash.ImageHash
	lastSent time.Time
}

// next returns the JPEG to send at now, or false when there is nothing new.
func (e *frameEncoder) next(src PreviewSource, now time.Time) ([]byte, bool) {
	img, taken, ok := src.Preview()
	if !ok || taken.Equal(e.taken) {
		return nil, false
	}
	e.taken = taken

	img = downscale(img, streamMaxWidth)

	if hash, err := goimagehash.DifferenceHash(img); err == nil {
		if e.hash != nil && now.Sub(e.lastSent) < streamKeepalive {
			if dist, err := e.hash.Distance(hash); err == nil && dist <= maxHashDistance {
				return nil, false
			}
		}
		e.hash = hash
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, false
	}
	e.lastSent = now
	return buf.Bytes(), true
}

// downscale shrinks img to maxWidth keeping the aspect ratio. Narrower
// images are returned unchanged.
func downscale(img image.Image, maxWidth int) image.Image {
	if img.Bounds().Dx() <= maxWidth {
		return img
	}
	g := gift.New(gift.Resize(maxWidth, 0, gift.LinearResampling))
	dst := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}
