package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dgraph-io/badger/v4"
)

// StatsProvider returns the current counter snapshot for the debug endpoint.
type StatsProvider func() map[string]any

// StartDebugServer exposes runtime counters and a raw Badger key browser on a
// side port. Never exposed publicly; gated behind the DEBUG_PORT setting.
func StartDebugServer(db *badger.DB, port int, statsProvider StatsProvider, log *slog.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		stats := map[string]any{}
		if statsProvider != nil {
			stats = statsProvider()
		}
		_ = json.NewEncoder(w).Encode(stats)
	})

	mux.HandleFunc("/debug/keys", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		type row struct {
			Key  string `json:"key"`
			Size int    `json:"size"`
		}
		var rows []row
		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					rows = append(rows, row{Key: string(item.Key()), Size: len(val)})
					return nil
				})
			}
			return nil
		})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rows)
	})

	go func() {
		addr := fmt.Sprintf("127.0.0.1:%d", port)
		log.Info(fmt.Sprintf("Debug server listening on %s", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Warn("Debug server stopped", "error", err)
		}
	}()
}
