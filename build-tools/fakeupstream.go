//go:build ignore

// Run: go run ./build-tools/fakeupstream.go -addr :9099 -creators 12 -tokens 60 -mint-every 30s
//
// Stands in for the rate-limited market API during local development. Serves
// the same read surface the real upstream does and mints a fresh token every
// -mint-every so the sync pipeline has something to detect.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	mrand "math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

type fakeToken struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Ticker         string    `json:"ticker"`
	Creator        string    `json:"creator"`
	CreatedTime    time.Time `json:"created_time"`
	Price          int64     `json:"price"`
	Price1D        int64     `json:"price_1d"`
	Volume         int64     `json:"volume"`
	Marketcap      int64     `json:"marketcap"`
	HolderCount    int64     `json:"holder_count"`
	HolderTop      int64     `json:"holder_top"`
	HolderDev      int64     `json:"holder_dev"`
	BuyCount       int64     `json:"buy_count"`
	SellCount      int64     `json:"sell_count"`
	LastActionTime time.Time `json:"last_action_time"`
}

type fakeUser struct {
	Principal string `json:"principal"`
	Username  string `json:"username"`
	Image     string `json:"image"`
	Bio       string `json:"bio"`
}

type world struct {
	mu      sync.RWMutex
	tokens  []*fakeToken
	users   map[string]*fakeUser
	nextSeq int
}

func main() {
	var (
		addr      = flag.String("addr", ":9099", "listen address")
		creators  = flag.Int("creators", 12, "distinct creator principals")
		tokens    = flag.Int("tokens", 60, "initial token count")
		mintEvery = flag.Duration("mint-every", 30*time.Second, "interval between new token mints, 0 disables")
	)
	flag.Parse()

	if *creators <= 0 || *tokens <= 0 {
		fmt.Println("creators and tokens must be positive")
		os.Exit(1)
	}

	w := newWorld(*creators, *tokens)

	if *mintEvery > 0 {
		go func() {
			t := time.NewTicker(*mintEvery)
			defer t.Stop()
			for range t.C {
				tok := w.mint()
				fmt.Printf("minted %s by %s\n", tok.ID, tok.Creator)
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/tokens", w.handleTokens)
	mux.HandleFunc("/token/", w.handleToken)
	mux.HandleFunc("/creator/", w.handleCreator)
	mux.HandleFunc("/user/", w.handleUser)

	fmt.Printf("fakeupstream listening on %s (%d creators, %d tokens)\n", *addr, *creators, *tokens)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		fmt.Printf("listen error: %v\n", err)
		os.Exit(1)
	}
}

func newWorld(creators, tokens int) *world {
	w := &world{users: make(map[string]*fakeUser)}

	principals := make([]string, creators)
	for i := range principals {
		p := fmt.Sprintf("principal-%03d", i+1)
		principals[i] = p
		w.users[p] = &fakeUser{
			Principal: p,
			Username:  fmt.Sprintf("minter_%03d", i+1),
			Bio:       "synthetic creator",
		}
	}

	now := time.Now().UTC()
	for i := 0; i < tokens; i++ {
		w.nextSeq++
		created := now.Add(-time.Duration(mrand.Intn(14*24)) * time.Hour)
		w.tokens = append(w.tokens, randomToken(w.nextSeq, principals[mrand.Intn(creators)], created))
	}

	return w
}

func randomToken(seq int, creator string, created time.Time) *fakeToken {
	price := int64(50 + mrand.Intn(5000)) // raw 1/1000 sat units
	return &fakeToken{
		ID:             fmt.Sprintf("tok%05d", seq),
		Name:           fmt.Sprintf("Token %05d", seq),
		Ticker:         fmt.Sprintf("TK%05d", seq),
		Creator:        creator,
		CreatedTime:    created,
		Price:          price,
		Price1D:        price - int64(mrand.Intn(100)) + 50,
		Volume:         int64(mrand.Intn(2_000_000_000)),
		Marketcap:      int64(mrand.Intn(10_000_000_000)),
		HolderCount:    int64(5 + mrand.Intn(500)),
		HolderTop:      int64(mrand.Intn(60)),
		HolderDev:      int64(mrand.Intn(30)),
		BuyCount:       int64(mrand.Intn(3000)),
		SellCount:      int64(mrand.Intn(2000)),
		LastActionTime: created.Add(time.Duration(mrand.Intn(72)) * time.Hour),
	}
}

func (w *world) mint() *fakeToken {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.nextSeq++
	creator := fmt.Sprintf("principal-%03d", 1+mrand.Intn(len(w.users)))
	tok := randomToken(w.nextSeq, creator, time.Now().UTC())
	w.tokens = append(w.tokens, tok)
	return tok
}

// GET /tokens?sort=created_time:desc&limit=N
func (w *world) handleTokens(rw http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	sortKey := r.URL.Query().Get("sort")

	w.mu.RLock()
	out := make([]*fakeToken, len(w.tokens))
	copy(out, w.tokens)
	w.mu.RUnlock()

	if strings.HasPrefix(sortKey, "created_time") {
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedTime.After(out[j].CreatedTime) })
	}
	if len(out) > limit {
		out = out[:limit]
	}

	writeJSON(rw, out)
}

// GET /token/{id}, /token/{id}/trades, /token/{id}/holders
func (w *world) handleToken(rw http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/token/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]

	w.mu.RLock()
	var tok *fakeToken
	for _, t := range w.tokens {
		if t.ID == id {
			tok = t
			break
		}
	}
	w.mu.RUnlock()

	if tok == nil {
		http.NotFound(rw, r)
		return
	}

	if len(parts) == 2 && parts[1] == "trades" {
		limit := queryInt(r, "limit", 100)
		trades := make([]map[string]any, 0, limit)
		for i := 0; i < limit && i < 25; i++ {
			side := "buy"
			if mrand.Intn(2) == 0 {
				side = "sell"
			}
			trades = append(trades, map[string]any{
				"token":  tok.ID,
				"side":   side,
				"amount": mrand.Intn(1_000_000),
				"time":   time.Now().UTC().Add(-time.Duration(i) * time.Minute),
			})
		}
		writeJSON(rw, trades)
		return
	}

	// holders route serves the token itself, the service reduces the fields
	writeJSON(rw, tok)
}

// GET /creator/{principal}/tokens
func (w *world) handleCreator(rw http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/creator/")
	principal := strings.TrimSuffix(rest, "/tokens")

	w.mu.RLock()
	out := make([]*fakeToken, 0, 8)
	for _, t := range w.tokens {
		if t.Creator == principal {
			out = append(out, t)
		}
	}
	w.mu.RUnlock()

	writeJSON(rw, out)
}

// GET /user/{principal}, /user/{principal}/balances
func (w *world) handleUser(rw http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/user/")
	parts := strings.SplitN(rest, "/", 2)
	principal := parts[0]

	w.mu.RLock()
	user := w.users[principal]
	w.mu.RUnlock()

	if user == nil {
		http.NotFound(rw, r)
		return
	}

	if len(parts) == 2 && parts[1] == "balances" {
		writeJSON(rw, []map[string]any{
			{"token": "BTC", "balance": mrand.Intn(1_000_000)},
		})
		return
	}

	writeJSON(rw, user)
}

func writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(v)
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
