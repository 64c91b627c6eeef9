// Command egrul-registry is a local stand-in for egrul.nalog.ru.
//
// Magic identifiers select the behavior:
//
//	7707083893, 1027700132195  active organization
//	500100732259               active sole proprietor
//	7700000000                 organization struck off the registry
//	0000000000                 token request asks for a captcha
//	1111111111                 search result without "rows"
//	2222222222                 extraction never becomes ready
//	3333333333                 extraction token rotates on every response
//	9999999999                 token request answers 503
//
// Any other identifier finds nothing.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultPort      = "8082"
	defaultLatencyMs = "50"
)

type row map[string]string

var records = map[string]row{
	"7707083893": {
		"k": "ul", "c": `ПАО "СБЕРБАНК РОССИИ"`, "g": "ПРЕЗИДЕНТ, ПРЕДСЕДАТЕЛЬ ПРАВЛЕНИЯ: ГРЕФ ГЕРМАН ОСКАРОВИЧ",
		"i": "7707083893", "o": "1027700132195", "p": "773601001", "a": "Г. МОСКВА, УЛ. ВАВИЛОВА, Д. 19",
	},
	"500100732259": {
		"k": "fl", "n": "ИВАНОВ ИВАН ИВАНОВИЧ", "i": "500100732259", "o": "304500116000157",
	},
	"7700000000": {
		"k": "ul", "c": `ООО "ЗАКРЫТО"`, "g": "ДИРЕКТОР: ПЕТРОВ ПЕТР ПЕТРОВИЧ",
		"i": "7700000000", "o": "1027700000000", "p": "770001001", "a": "Г. МОСКВА, УЛ. ТВЕРСКАЯ, Д. 1",
		"e": "01.02.2020",
	},
	"2222222222": {
		"k": "ul", "c": `ООО "ДОЛГО"`, "g": "ДИРЕКТОР: СИДОРОВ СИДОР", "i": "2222222222",
		"o": "1022222222222", "p": "222201001", "a": "Г. КАЗАНЬ, УЛ. БАУМАНА, Д. 2",
	},
	"3333333333": {
		"k": "ul", "c": `АО "РОТАЦИЯ"`, "g": "ГЕНЕРАЛЬНЫЙ ДИРЕКТОР: КУЗНЕЦОВА АННА", "i": "3333333333",
		"o": "1033333333333", "p": "333301001", "a": "Г. САНКТ-ПЕТЕРБУРГ, НЕВСКИЙ ПР., Д. 3",
	},
}

func init() {
	records["1027700132195"] = records["7707083893"]
}

// extraction tracks one vyp-request job.
type extraction struct {
	query  string
	polls  int
	rotate int
}

type registry struct {
	mu      sync.Mutex
	seq     int
	search  map[string]string
	jobs    map[string]*extraction
	latency time.Duration
}

func main() {
	port := getEnv("PORT", defaultPort)
	latency, _ := strconv.Atoi(getEnv("LATENCY_MS", defaultLatencyMs))

	reg := &registry{
		search:  make(map[string]string),
		jobs:    make(map[string]*extraction),
		latency: time.Duration(latency) * time.Millisecond,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", reg.handleHome)
	mux.HandleFunc("POST /{$}", reg.handleToken)
	mux.HandleFunc("GET /search-result/{token}", reg.handleSearch)
	mux.HandleFunc("GET /vyp-request/{token}", reg.handleExtractionRequest)
	mux.HandleFunc("GET /vyp-status/{token}", reg.handleExtractionStatus)
	mux.HandleFunc("GET /vyp-download/{token}", reg.handleDownload)

	log.Printf("Mock EGRUL registry starting on port %s (latency %dms)", port, latency)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Fatal(err)
	}
}

func (r *registry) handleHome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte("<html><body>mock egrul</body></html>"))
}

func (r *registry) handleToken(w http.ResponseWriter, req *http.Request) {
	r.sleep()
	var form struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(req.Body).Decode(&form); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	switch form.Query {
	case "0000000000":
		writeJSON(w, map[string]any{"captchaRequired": true})
		return
	case "9999999999":
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	r.mu.Lock()
	r.seq++
	token := fmt.Sprintf("search-%d", r.seq)
	r.search[token] = form.Query
	r.mu.Unlock()
	writeJSON(w, map[string]any{"t": token, "captchaRequired": false})
}

func (r *registry) handleSearch(w http.ResponseWriter, req *http.Request) {
	r.sleep()
	r.mu.Lock()
	query, ok := r.search[req.PathValue("token")]
	r.mu.Unlock()
	if !ok {
		http.Error(w, "unknown token", http.StatusNotFound)
		return
	}

	if query == "1111111111" {
		writeJSON(w, map[string]any{"status": "ok"})
		return
	}
	rec, ok := records[query]
	if !ok {
		writeJSON(w, map[string]any{"rows": []row{}})
		return
	}

	r.mu.Lock()
	r.seq++
	vyp := fmt.Sprintf("vyp-%d", r.seq)
	r.jobs[vyp] = &extraction{query: query}
	r.mu.Unlock()

	out := row{}
	for k, v := range rec {
		out[k] = v
	}
	out["t"] = vyp
	writeJSON(w, map[string]any{"rows": []row{out}})
}

func (r *registry) handleExtractionRequest(w http.ResponseWriter, req *http.Request) {
	r.sleep()
	token, job, ok := r.job(req.PathValue("token"))
	if !ok {
		http.Error(w, "unknown token", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"t": r.maybeRotate(token, job), "captchaRequired": false})
}

func (r *registry) handleExtractionStatus(w http.ResponseWriter, req *http.Request) {
	r.sleep()
	token, job, ok := r.job(req.PathValue("token"))
	if !ok {
		http.Error(w, "unknown token", http.StatusNotFound)
		return
	}

	r.mu.Lock()
	job.polls++
	polls := job.polls
	r.mu.Unlock()

	status := "wait"
	if job.query != "2222222222" && polls >= 2 {
		status = "ready"
	}
	writeJSON(w, map[string]any{"status": status, "t": r.maybeRotate(token, job)})
}

func (r *registry) handleDownload(w http.ResponseWriter, req *http.Request) {
	_, job, ok := r.job(req.PathValue("token"))
	if !ok {
		http.Error(w, "unknown token", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+job.query+`.pdf"`)
	_, _ = w.Write([]byte("%PDF-1.4\n% mock extraction for " + job.query + "\n"))
}

func (r *registry) job(token string) (string, *extraction, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[token]
	return token, job, ok
}

// maybeRotate issues a fresh token for the rotating identifier and keeps the job under both.
func (r *registry) maybeRotate(token string, job *extraction) string {
	if job.query != "3333333333" {
		return token
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job.rotate++
	next := strings.SplitN(token, ".", 2)[0] + "." + strconv.Itoa(job.rotate)
	r.jobs[next] = job
	return next
}

func (r *registry) sleep() {
	if r.latency > 0 {
		time.Sleep(r.latency)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
