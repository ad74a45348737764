// Package api is the HTTP surface described in §6: checks/groups/alerters/
// users CRUD, outages, site outages, events, status, statistics, the
// `/api/-/token`+refresh+me user-auth family, the runner protocol, and the
// Prometheus `/metrics` endpoint.
package api

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/jonsson/defcon/internal/ingest"
	"github.com/jonsson/defcon/internal/isp"
	"github.com/jonsson/defcon/internal/jwtkeys"
	"github.com/jonsson/defcon/internal/model"
	"github.com/jonsson/defcon/internal/storage"
)

// Version is stamped at build time via -ldflags, same as the teacher.
var Version = "dev"

// Store is the subset of storage.DB the API layer needs. Declared narrow,
// in the idiom the rest of this module's packages already follow, so the
// handlers can be tested against a fake without a real SQLite file.
type Store interface {
	CreateCheck(check *model.Check, sites []string) error
	UpdateCheck(check *model.Check) error
	SetCheckEnabled(checkUUID string, enabled bool) error
	DeleteCheck(checkUUID string) (bool, error)
	GetCheckByUUID(checkUUID string) (*model.Check, error)
	GetCheckByID(id int64) (*model.Check, error)
	ListChecks(groupUUID string) ([]model.Check, error)
	Sites(checkID int64) ([]string, error)
	UpdateSites(checkID int64, sites []string) error
	StaleChecks(site string) ([]model.StaleCheck, error)
	GetSpec(checkID int64, kind model.CheckKind) (*model.Spec, error)
	SaveSpec(checkID int64, spec *model.Spec) error

	GetOpenOutage(checkID int64) (*model.Outage, error)
	ListAllOutages(from, to *time.Time) ([]model.Outage, error)
	ListOutages(checkID int64) ([]model.Outage, error)
	GetOutageByUUID(outageUUID string) (*model.Outage, error)
	SetOutageComment(outageUUID, comment string) error
	ListTimeline(outageID int64) ([]model.Timeline, error)

	ListAllSiteOutages() ([]model.SiteOutage, error)
	GetSiteOutageByUUID(siteOutageUUID string) (*model.SiteOutage, error)
	ListSiteOutages(checkID int64) ([]model.SiteOutage, error)
	EventsBySiteOutage(siteOutageID int64) ([]model.Event, error)
	EventsForCheck(checkID int64, from, to *time.Time) ([]model.Event, error)
	RecentEvents(checkID int64, site string, limit int) ([]model.Event, error)

	CreateGroup(g *model.Group) error
	UpdateGroup(g *model.Group) error
	DeleteGroup(groupUUID string) (bool, error)
	GetGroupByUUID(groupUUID string) (*model.Group, error)
	ListGroups() ([]model.Group, error)

	CreateAlerter(a *model.Alerter) error
	UpdateAlerter(a *model.Alerter) error
	DeleteAlerter(alerterUUID string) (bool, error)
	GetAlerterByID(id int64) (*model.Alerter, error)
	GetAlerterByUUID(alerterUUID string) (*model.Alerter, error)
	ListAlerters() ([]model.Alerter, error)

	CreateUser(email, password string) (*model.User, error)
	DeleteUser(userUUID string) (bool, error)
	GetUserByEmail(email string) (*model.User, error)
	GetUserByUUID(userUUID string) (*model.User, error)
	ListUsers() ([]model.User, error)

	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}

var _ Store = (*storage.DB)(nil)

// Ingestor is the ingest.Ingestor surface the runner-report handler drives.
type Ingestor interface {
	Ingest(check *model.Check, site string, status model.Status, message string) error
}

var _ Ingestor = (*ingest.Ingestor)(nil)

// Handler holds every dependency the HTTP surface needs.
type Handler struct {
	db          Store
	dbPath      string
	userKeys    *jwtkeys.UserKeys
	runnerKeys  *jwtkeys.RunnerKeys
	ingestor    Ingestor
	classifier  *isp.Classifier
	authLimiter *authLimiter
	metrics     *Metrics
}

// New builds a Handler. runnerKeys may be nil when the runner protocol is
// disabled (no PUBLIC_KEY/PRIVATE_KEY configured); those routes then 503.
func New(db Store, dbPath string, userKeys *jwtkeys.UserKeys, runnerKeys *jwtkeys.RunnerKeys, ingestor Ingestor) *Handler {
	return &Handler{
		db:          db,
		dbPath:      dbPath,
		userKeys:    userKeys,
		runnerKeys:  runnerKeys,
		ingestor:    ingestor,
		classifier:  isp.NewClassifier(),
		authLimiter: newAuthLimiter(1, 5),
		metrics:     NewMetrics(),
	}
}

// LoadISPConfig loads ASN -> display-name overrides for the status page's
// "viewing from" hint (GET /api/-/status). Optional: an empty/unset path
// leaves the classifier falling back to Team Cymru's ASN org name for every
// client IP.
func (h *Handler) LoadISPConfig(path string) error {
	return h.classifier.LoadConfig(path)
}

// Health handles GET /api/-/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// statusResponse is the §6 `/api/-/status` body.
type statusResponse struct {
	OK         bool              `json:"ok"`
	Checks     int               `json:"checks"`
	Outages    statusOutageCount `json:"outages"`
	StatusPage []statusPageCheck `json:"status_page"`
	ClientISP  string            `json:"client_isp,omitempty"`
}

type statusOutageCount struct {
	Site   int `json:"site"`
	Global int `json:"global"`
}

type statusPageCheck struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
	Open bool   `json:"open"`
}

// Status handles GET /api/-/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	checks, err := h.db.ListChecks("")
	if err != nil {
		writeAPIError(w, err)
		return
	}

	siteOutages, err := h.db.ListAllSiteOutages()
	if err != nil {
		writeAPIError(w, err)
		return
	}
	openSites := 0
	for _, so := range siteOutages {
		if so.Open() {
			openSites++
		}
	}

	resp := statusResponse{OK: true, Checks: len(checks), StatusPage: []statusPageCheck{}}
	resp.Outages.Site = openSites

	for _, c := range checks {
		if !c.OnStatusPage {
			continue
		}
		outage, err := h.db.GetOpenOutage(c.ID)
		if err != nil {
			writeAPIError(w, err)
			return
		}
		open := outage != nil
		if open {
			resp.Outages.Global++
		}
		resp.StatusPage = append(resp.StatusPage, statusPageCheck{UUID: c.UUID, Name: c.Name, Open: open})
	}

	if clientIP := GetClientIP(r); clientIP != "" {
		if name, err := h.classifier.ClassifyISP(clientIP); err == nil {
			resp.ClientISP = name
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Statistics handles GET /api/-/statistics?from=&to=&check=, grouping each
// matching Outage under the date (YYYY-MM-DD) it started on.
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	outages, err := h.db.ListAllOutages(from, to)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	if checkUUID := r.URL.Query().Get("check"); checkUUID != "" {
		check, err := h.db.GetCheckByUUID(checkUUID)
		if err != nil {
			writeAPIError(w, err)
			return
		}
		if check == nil {
			writeAPIError(w, notFound("check not found"))
			return
		}
		filtered := outages[:0]
		for _, o := range outages {
			if o.CheckID == check.ID {
				filtered = append(filtered, o)
			}
		}
		outages = filtered
	}

	grouped := map[string][]model.Outage{}
	for _, o := range outages {
		date := o.StartedOn.Format("2006-01-02")
		grouped[date] = append(grouped[date], o)
	}

	writeJSON(w, http.StatusOK, grouped)
}

func parseDateRange(r *http.Request) (from, to *time.Time, err error) {
	if s := r.URL.Query().Get("from"); s != "" {
		t, perr := parseWireTime(s)
		if perr != nil {
			return nil, nil, badRequest("invalid from: %v", perr)
		}
		from = &t
	}
	if s := r.URL.Query().Get("to"); s != "" {
		t, perr := parseWireTime(s)
		if perr != nil {
			return nil, nil, badRequest("invalid to: %v", perr)
		}
		to = &t
	}
	return from, to, nil
}

// parseWireTime accepts both §6 wire formats: YYYY-MM-DD and
// YYYY-MM-DDThh:mm:ss.
func parseWireTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("api: failed to encode JSON response: %v", err)
	}
}

func decodeJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

// isNotFound centralizes the sql.ErrNoRows check the handlers would
// otherwise repeat at every lookup.
func isNotFound(err error) bool {
	return err == sql.ErrNoRows
}
