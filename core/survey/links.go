package survey

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"html"
	"math/big"

	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

const (
	shortCodeAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	shortCodeLength   = 8
	shortCodeAttempts = 5
	qrCodeSize        = 256
)

// Links are the ways a survey can be reached.
type Links struct {
	SurveyLink    string `json:"survey_link"`
	ShortCode     string `json:"short_code"`
	ShortenedLink string `json:"shortened_link"`
	QRCodeDataURL string `json:"qr_code_data_url"`
	EmbedCode     string `json:"embed_code"`
}

func surveyLink(baseURL, surveyID string) string {
	return fmt.Sprintf("%s/survey/%s", baseURL, surveyID)
}

func shortenedLink(baseURL, code string) string {
	return fmt.Sprintf("%s/s/%s", baseURL, code)
}

func embedCode(link string) string {
	return fmt.Sprintf(
		`<iframe src="%s?embed=true" width="100%%" height="800" frameborder="0" style="border:0;" allowfullscreen></iframe>`,
		html.EscapeString(link),
	)
}

func qrCodeDataURL(content string) (string, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, qrCodeSize)
	if err != nil {
		return "", errors.Wrap(err, "qrcode.Encode")
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

func randomShortCode() (string, error) {
	max := big.NewInt(int64(len(shortCodeAlphabet)))
	code := make([]byte, shortCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "rand.Int")
		}
		code[i] = shortCodeAlphabet[n.Int64()]
	}
	return string(code), nil
}

func (svc *Service) uniqueShortCode(ctx context.Context) (string, error) {
	for i := 0; i < shortCodeAttempts; i++ {
		code, err := randomShortCode()
		if err != nil {
			return "", err
		}
		exists, err := svc.repo.ShortCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique short code")
}

// GenerateLinks builds the survey link, a short link, its QR code and an embed snippet, and stores them.
// An existing short code is kept so printed QR codes stay valid.
func (svc *Service) GenerateLinks(ctx context.Context, surveyID, actor string) (Links, error) {
	s, err := svc.Get(ctx, surveyID)
	if err != nil {
		return Links{}, err
	}
	if s.Status == StatusArchived {
		return Links{}, core.NewConflictError("archived surveys cannot be shared")
	}

	code := s.ShortCode
	if code == "" {
		if code, err = svc.uniqueShortCode(ctx); err != nil {
			return Links{}, err
		}
	}
	link := surveyLink(svc.conf.FrontendBaseURL, s.ID)
	short := shortenedLink(svc.conf.FrontendBaseURL, code)
	qr, err := qrCodeDataURL(short)
	if err != nil {
		return Links{}, err
	}

	s.SurveyLink = link
	s.ShortCode = code
	s.ShortenedLink = short
	s.QRCodeDataURL = qr
	s.EmbedCode = embedCode(link)
	s.UpdatedAt = nowFunc().UTC()
	s.UpdatedBy = actor
	if s, err = svc.repo.Update(ctx, s); err != nil {
		return Links{}, err
	}
	return linksOf(s), nil
}

// GetLinks returns the stored links; they are empty until GenerateLinks is called.
func (svc *Service) GetLinks(ctx context.Context, surveyID string) (Links, error) {
	s, err := svc.Get(ctx, surveyID)
	if err != nil {
		return Links{}, err
	}
	return linksOf(s), nil
}

// ResolveShortCode returns the survey link a short code points to.
func (svc *Service) ResolveShortCode(ctx context.Context, code string) (string, error) {
	code = core.CleanString(code)
	if code == "" {
		return "", ErrNotFound
	}
	s, err := svc.repo.GetByShortCode(ctx, code)
	if err != nil {
		if core.IsNotFound(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	if s.SurveyLink != "" {
		return s.SurveyLink, nil
	}
	return surveyLink(svc.conf.FrontendBaseURL, s.ID), nil
}

func linksOf(s Survey) Links {
	return Links{
		SurveyLink:    s.SurveyLink,
		ShortCode:     s.ShortCode,
		ShortenedLink: s.ShortenedLink,
		QRCodeDataURL: s.QRCodeDataURL,
		EmbedCode:     s.EmbedCode,
	}
}
