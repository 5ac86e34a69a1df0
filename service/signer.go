package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"image/jpeg"
	"image/png"
	"strconv"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/mouleshgs/onboardX/model"
	"github.com/mouleshgs/onboardX/pkg/logger"
)

// Watermark anchors on the final page: the signature image sits at the
// bottom left with the label and printed name beneath it.
const (
	sigImageDesc = "pos:bl, off:50 80, scale:0.25 abs, rot:0, op:1"
	sigLabelDesc = "fontname:Helvetica, points:10, pos:bl, off:50 66, scale:1 abs, rot:0, op:1"
	sigNameDesc  = "fontname:Helvetica, points:10, pos:bl, off:50 52, scale:1 abs, rot:0, op:1"
)

// Signer embeds a hand-drawn signature into a PDF and produces the
// tamper-evident digest and detached signature over the final bytes.
// It never swallows failures: anything that would leave the signature
// covering different bytes than the ones stored aborts the operation.
type Signer struct {
	keys *KeyStore
}

func NewSigner(keys *KeyStore) *Signer {
	return &Signer{keys: keys}
}

// pdfConf builds a fresh configuration for one signing pass. pdfcpu
// mutates the configuration it is handed, so it must not be shared
// between concurrent Sign calls.
func pdfConf() *pdfmodel.Configuration {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	return conf
}

// Sign embeds the signature image and printed name into the last page
// of the PDF, re-serializes it and signs the result. The returned
// record's locator is left empty; the caller fills it in after the
// signed bytes are persisted.
func (s *Signer) Sign(ctx context.Context, original []byte, signerName, signatureDataURL string) ([]byte, *model.SignatureRecord, error) {
	imgBytes, err := decodeSignatureImage(signatureDataURL)
	if err != nil {
		return nil, nil, err
	}

	conf := pdfConf()
	if err := api.Validate(bytes.NewReader(original), conf); err != nil {
		return nil, nil, &InvalidDocumentError{Reason: "malformed PDF", Err: err}
	}

	pageCount, err := api.PageCount(bytes.NewReader(original), conf)
	if err != nil {
		return nil, nil, &InvalidDocumentError{Reason: "unreadable page tree", Err: err}
	}
	lastPage := []string{strconv.Itoa(pageCount)}

	wm, err := api.ImageWatermarkForReader(bytes.NewReader(imgBytes), sigImageDesc, true, false, pdftypes.POINTS)
	if err != nil {
		return nil, nil, &InvalidDocumentError{Reason: "signature image rejected", Err: err}
	}

	var stamped bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(original), &stamped, lastPage, wm, conf); err != nil {
		return nil, nil, &InvalidDocumentError{Reason: "embedding signature image failed", Err: err}
	}
	signed := stamped.Bytes()

	// Text stamping is best effort: a font problem degrades to the
	// printed name only, and then to no text at all, but never fails
	// the signing.
	signed = s.stampText(ctx, conf, signed, lastPage, "Signature", sigLabelDesc)
	signed = s.stampText(ctx, conf, signed, lastPage, signerName, sigNameDesc)

	digest := sha256.Sum256(signed)
	sig, err := s.keys.SignDetached(digest[:])
	if err != nil {
		return nil, nil, fmt.Errorf("detached signing failed: %w", err)
	}

	rec := &model.SignatureRecord{
		SignerName: signerName,
		SignedAt:   time.Now().UTC(),
		Sha256:     hex.EncodeToString(digest[:]),
		Signature:  base64.StdEncoding.EncodeToString(sig),
	}
	return signed, rec, nil
}

func (s *Signer) stampText(ctx context.Context, conf *pdfmodel.Configuration, in []byte, pages []string, text, desc string) []byte {
	if text == "" {
		return in
	}

	wm, err := api.TextWatermark(text, desc, true, false, pdftypes.POINTS)
	if err != nil {
		logger.Warn(ctx, "text watermark skipped", "text", text, "error", err)
		return in
	}

	var out bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(in), &out, pages, wm, conf); err != nil {
		logger.Warn(ctx, "text stamping skipped", "text", text, "error", err)
		return in
	}
	return out.Bytes()
}

// decodeSignatureImage strips the data-URL prefix and confirms the
// payload decodes as PNG, then JPEG, before handing it to the stamper.
func decodeSignatureImage(dataURL string) ([]byte, error) {
	payload := dataURL
	if idx := strings.Index(payload, ";base64,"); idx >= 0 {
		payload = payload[idx+len(";base64,"):]
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &InvalidDocumentError{Reason: "signature image is not valid base64", Err: err}
	}

	if _, err := png.Decode(bytes.NewReader(raw)); err == nil {
		return raw, nil
	}
	if _, err := jpeg.Decode(bytes.NewReader(raw)); err == nil {
		return raw, nil
	}
	return nil, &InvalidDocumentError{Reason: "signature image is neither PNG nor JPEG"}
}
