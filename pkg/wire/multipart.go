package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"

	"github.com/marmos91/mediastorage/internal/logger"
)

// FixedBoundary is the multipart boundary every put request uses (§4.8).
// Fixing it removes a round of per-request boundary negotiation between
// the proxies and the storage server.
const FixedBoundary = "media-storage-6f1c9b2a4d7e-boundary"

// ContentType is the Content-Type header value for an encoded put body.
const ContentType = "multipart/form-data; boundary=" + FixedBoundary

// EncodeMultipart writes a put request body to w: a "header" JSON part
// followed by a "content" octet-stream part, using FixedBoundary. Callers
// send ContentType as the request's Content-Type header.
func EncodeMultipart(w io.Writer, header []byte, content io.Reader) error {
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(FixedBoundary); err != nil {
		return err
	}

	hw, err := mw.CreateFormField("header")
	if err != nil {
		return err
	}
	if _, err := hw.Write(header); err != nil {
		return err
	}

	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", `form-data; name="content"; filename="payload"`)
	partHeader.Set("Content-Type", "application/octet-stream")
	cw, err := mw.CreatePart(partHeader)
	if err != nil {
		return err
	}
	if _, err := io.Copy(cw, content); err != nil {
		return err
	}

	return mw.Close()
}

// PutBody is the decoded form of a put request.
type PutBody struct {
	Header  PutHeader
	Content io.ReadCloser
}

// Close releases the content handle.
func (b *PutBody) Close() error {
	if b.Content == nil {
		return nil
	}
	return b.Content.Close()
}

// DecodePutBody extracts the header and content from a put request,
// handling both the multipart/form-data form and the nginx side-channel
// form (§4.3.1, §4.8): "header=<json>&nginx=1&content=<tempfile-path>",
// used when a front-end reverse proxy has already spooled the upload to
// disk. In that mode the tempfile is unlinked right after opening, so its
// space is reclaimed as soon as the returned handle is closed.
func DecodePutBody(r *http.Request) (*PutBody, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && mediaType == "multipart/form-data" {
		return decodeMultipart(r)
	}
	return decodeNginxSideChannel(r)
}

func decodeMultipart(r *http.Request) (*PutBody, error) {
	mr := multipart.NewReader(r.Body, FixedBoundary)

	var header *PutHeader
	var content io.ReadCloser
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("wire: reading multipart body: %w", err)
		}

		switch part.FormName() {
		case "header":
			var h PutHeader
			if err := json.NewDecoder(part).Decode(&h); err != nil {
				return nil, fmt.Errorf("wire: decoding put header: %w", err)
			}
			header = &h
		case "content":
			buf, err := io.ReadAll(part)
			if err != nil {
				return nil, fmt.Errorf("wire: reading content part: %w", err)
			}
			content = io.NopCloser(bytes.NewReader(buf))
		}
	}

	if header == nil {
		return nil, fmt.Errorf("wire: multipart body missing header part")
	}
	if content == nil {
		return nil, fmt.Errorf("wire: multipart body missing content part")
	}
	return &PutBody{Header: *header, Content: content}, nil
}

func decodeNginxSideChannel(r *http.Request) (*PutBody, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("wire: parsing nginx side-channel form: %w", err)
	}
	if r.FormValue("nginx") == "" {
		return nil, fmt.Errorf("wire: request is neither multipart nor an nginx side-channel form")
	}

	path := r.FormValue("content")
	if path == "" {
		return nil, fmt.Errorf("wire: nginx side-channel request missing content path")
	}

	var header PutHeader
	if err := json.Unmarshal([]byte(r.FormValue("header")), &header); err != nil {
		return nil, fmt.Errorf("wire: decoding put header: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wire: opening nginx tempfile: %w", err)
	}
	if err := os.Remove(path); err != nil {
		logger.Warn("failed to unlink nginx tempfile", "path", path, "error", err)
	}

	return &PutBody{Header: header, Content: f}, nil
}
