// Package module runs feature modules over the classified event stream.
// Modules mutate only their own state and reach the client through the
// collaborators in Env.
package module

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"mutool.ai/internal/catalog"
	"mutool.ai/internal/item"
	"mutool.ai/internal/notify"
	"mutool.ai/internal/persistence/statsdb"
	"mutool.ai/internal/protocol"
	"mutool.ai/internal/render"
	"mutool.ai/internal/world"
)

// Module is one feature. Every method runs on the runtime goroutine and must
// not block.
type Module interface {
	Name() string
	Process(ev protocol.Event)
	Update(now time.Time)
	Render(r render.Renderer)
	// Chat reports whether the module consumed the command.
	Chat(text string) bool
}

// Base provides no-op defaults for embedding.
type Base struct{}

func (Base) Process(protocol.Event) {}
func (Base) Update(time.Time)       {}
func (Base) Render(render.Renderer) {}
func (Base) Chat(string) bool       { return false }

// ErrSend wraps failures to deliver an outbound request to the client.
var ErrSend = errors.New("send failed")

// Sender issues outbound game requests.
type Sender interface {
	PickupPending() bool
	SendPickupRequest(slot int) error
	// UseItem marks a potion in use until the next world snapshot.
	UseItem(slot int) error
	RepairItem(slot int) error
	Screenshot() error
}

// Noticer shows a line of text in the client's notice area.
type Noticer interface {
	ShowNotice(text string)
}

// History persists closed statistics sessions.
type History interface {
	RecordSession(s statsdb.Session)
}

// Env carries the collaborators modules are built with.
type Env struct {
	World   world.View
	Sender  Sender
	Noticer Noticer
	Notify  notify.Service
	History History
	Catalog []catalog.Entry
	Log     zerolog.Logger
	Now     func() time.Time
}

// Clock returns env.Now, or time.Now when unset.
func (e *Env) Clock() func() time.Time {
	if e.Now != nil {
		return e.Now
	}
	return time.Now
}

// ItemName resolves the catalog display name for it, falling back to the
// raw code.
func (e *Env) ItemName(it item.Item) string {
	if name, ok := catalog.Name(e.Catalog, it); ok {
		return name
	}
	return it.Code.String()
}

// ConfigError reports a module whose config section could not be decoded.
// The module is skipped and the rest of the pipeline loads.
type ConfigError struct {
	Module string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("module %s: config: %v", e.Module, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// DecodeConfig decodes a module's config section into dst. A nil node
// leaves dst at its zero value.
func DecodeConfig(node *yaml.Node, dst any) error {
	if node == nil || node.Kind == 0 {
		return nil
	}
	return node.Decode(dst)
}

// Spec describes how to build a module from its config section. Build
// returns a nil Module when the module is disabled.
type Spec struct {
	Name  string
	Build func(node *yaml.Node, env *Env) (Module, error)
}
