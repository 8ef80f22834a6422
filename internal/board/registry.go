package board

import (
	"sync"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
	"github.com/twiced-technology-gmbh/trackflow/internal/config"
)

// Registry is the read-only board configuration source. Replace swaps the
// whole set atomically, so a config reload never exposes a half-built view.
type Registry struct {
	mu     sync.RWMutex
	boards map[string]*Board
	order  []string
}

// NewRegistry returns a registry holding boards in the given order.
func NewRegistry(boards ...*Board) *Registry {
	r := &Registry{}
	r.Replace(boards)
	return r
}

// RegistryFromConfig builds a registry from every configured board.
func RegistryFromConfig(cfg *config.Config) (*Registry, error) {
	boards, err := boardsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return NewRegistry(boards...), nil
}

func boardsFromConfig(cfg *config.Config) ([]*Board, error) {
	boards := make([]*Board, 0, len(cfg.Boards))
	for _, bc := range cfg.Boards {
		b, err := FromConfig(bc)
		if err != nil {
			return nil, err
		}
		boards = append(boards, b)
	}
	return boards, nil
}

// Reload replaces the boards with those in cfg. On error the registry is unchanged.
func (r *Registry) Reload(cfg *config.Config) error {
	boards, err := boardsFromConfig(cfg)
	if err != nil {
		return err
	}
	r.Replace(boards)
	return nil
}

// Replace swaps in a new set of boards.
func (r *Registry) Replace(boards []*Board) {
	m := make(map[string]*Board, len(boards))
	order := make([]string, 0, len(boards))
	for _, b := range boards {
		if _, dup := m[b.ID]; !dup {
			order = append(order, b.ID)
		}
		m[b.ID] = b.Clone()
	}
	r.mu.Lock()
	r.boards = m
	r.order = order
	r.mu.Unlock()
}

// Board returns a copy of the board with the given ID.
func (r *Registry) Board(id string) (*Board, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.boards[id]
	if !ok {
		return nil, apierr.Newf(apierr.NotFound, "board %q not found", id).
			WithDetails(map[string]any{"board": id})
	}
	return b.Clone(), nil
}

// All returns copies of every board in configuration order.
func (r *Registry) All() []*Board {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Board, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.boards[id].Clone())
	}
	return out
}

// BoardsForProject returns copies of the boards over projectID.
func (r *Registry) BoardsForProject(projectID string) []*Board {
	var out []*Board
	for _, b := range r.All() {
		if b.ProjectID == projectID {
			out = append(out, b)
		}
	}
	return out
}
