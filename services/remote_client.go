package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dimsprat/scanner-gateway/models"
	"github.com/dimsprat/scanner-gateway/utils"
)

// APIResponse adalah amplop jawaban API tiket: selalu ada field status,
// "success" atau lainnya; saat gagal ada message yang bisa dibaca manusia.
type APIResponse struct {
	Status      string          `json:"status"`
	Message     string          `json:"message,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	NeedsUpdate bool            `json:"needsUpdate,omitempty"`
}

type remoteTicket struct {
	TicketID string `json:"ticketId"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Event    string `json:"event"`
	Status   string `json:"status"`
}

// RemoteClient berbicara dengan backend spreadsheet. Semua panggilan
// dibatasi timeout; timeout diperlakukan sama dengan kegagalan transport.
type RemoteClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewRemoteClient(baseURL string, timeout time.Duration) *RemoteClient {
	return &RemoteClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// GetAction memanggil API dengan query ?action=...&param=...
func (rc *RemoteClient) GetAction(ctx context.Context, action string, params url.Values) (*APIResponse, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("action", action)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rc.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &utils.TransportError{Err: err}
	}
	return rc.do(req)
}

// PostAction mengirim mutasi {action, ...payload} sebagai JSON.
func (rc *RemoteClient) PostAction(ctx context.Context, action string, payload map[string]interface{}) (*APIResponse, error) {
	body := map[string]interface{}{"action": action}
	for k, v := range payload {
		body[k] = v
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, &utils.TransportError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rc.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return nil, &utils.TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return rc.do(req)
}

func (rc *RemoteClient) do(req *http.Request) (*APIResponse, error) {
	resp, err := rc.HTTP.Do(req)
	if err != nil {
		return nil, &utils.TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &utils.TransportError{Err: fmt.Errorf("remote returned HTTP %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &utils.TransportError{Err: err}
	}

	var parsed APIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &utils.TransportError{Err: fmt.Errorf("malformed response body: %w", err)}
	}

	if parsed.Status != "success" {
		return &parsed, &utils.RemoteRejection{Message: parsed.Message}
	}
	return &parsed, nil
}

// CheckForUpdates bertanya ke server apakah ada perubahan sejak lastSync.
func (rc *RemoteClient) CheckForUpdates(ctx context.Context, lastSync string) (bool, error) {
	params := url.Values{}
	params.Set("lastSync", lastSync)

	resp, err := rc.GetAction(ctx, "checkForUpdates", params)
	if err != nil {
		return false, err
	}
	return resp.NeedsUpdate, nil
}

// FetchTickets menarik satu bulk list (getTickets / getOtsTickets) dan
// memetakan baris spreadsheet ke model replika lokal.
func (rc *RemoteClient) FetchTickets(ctx context.Context, action string) ([]models.Ticket, error) {
	resp, err := rc.GetAction(ctx, action, nil)
	if err != nil {
		return nil, err
	}

	var rows []remoteTicket
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &rows); err != nil {
			return nil, &utils.TransportError{Err: fmt.Errorf("malformed ticket data: %w", err)}
		}
	}

	tickets := make([]models.Ticket, 0, len(rows))
	for _, r := range rows {
		status := models.TicketNotCheckedIn
		if r.Status == "used" {
			status = models.TicketUsed
		}
		tickets = append(tickets, models.Ticket{
			TicketID: r.TicketID,
			Name:     r.Name,
			Type:     r.Type,
			Event:    r.Event,
			Status:   status,
			IsOTS:    action == "getOtsTickets",
		})
	}
	return tickets, nil
}

// Ping memeriksa apakah server terjangkau. Dipakai monitor konektivitas.
func (rc *RemoteClient) Ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rc.BaseURL, nil)
	if err != nil {
		return false
	}
	resp, err := rc.HTTP.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// ProxyRequest meneruskan satu request mentah ke server (dipakai proxy
// cache). rawQuery dipertahankan apa adanya sehingga key cache persis
// sama dengan request aslinya.
func (rc *RemoteClient) ProxyRequest(ctx context.Context, method, rawQuery, contentType string, body []byte) (int, string, []byte, error) {
	target := rc.BaseURL
	if rawQuery != "" {
		target += "?" + rawQuery
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, "", nil, &utils.TransportError{Err: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := rc.HTTP.Do(req)
	if err != nil {
		return 0, "", nil, &utils.TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", nil, &utils.TransportError{Err: err}
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), respBody, nil
}
