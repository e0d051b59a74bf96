// Package platformtest provides an in-memory Platform that records every call.
package platformtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"membership-workflow/internal/platform"
)

type PostedMessage struct {
	SpaceRef   string
	MessageRef string
	Message    platform.Message
}

type Notice struct {
	UserID  string
	Message platform.Message
}

// Fake is a thread-safe in-memory platform. Set the *Err fields to make the matching
// capability fail.
type Fake struct {
	mu sync.Mutex

	CreateSpaceErr  error
	PostMessageErr  error
	ClearActionsErr error
	NotifyErr       error
	DeleteSpaceErr  error
	PingErr         error

	// NotifyHook, when set, runs inside DirectNotify before the notice is recorded.
	NotifyHook func(userID string)

	Now func() time.Time

	seq          int
	spaces       map[string]platform.Space
	specs        map[string]platform.SpaceSpec
	posts        []PostedMessage
	notices      []Notice
	cleared      []string
	deleted      []string
	createCalls  int
	deleteSignal chan string
}

func New() *Fake {
	return &Fake{
		Now:          func() time.Time { return time.Now().UTC() },
		spaces:       make(map[string]platform.Space),
		specs:        make(map[string]platform.SpaceSpec),
		deleteSignal: make(chan string, 64),
	}
}

func (f *Fake) nextRef(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

// AddSpace registers an existing space, e.g. an old one for cleanup tests.
func (f *Fake) AddSpace(space platform.Space) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spaces[space.Ref] = space
}

func (f *Fake) CreateRestrictedSpace(ctx context.Context, spec platform.SpaceSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.CreateSpaceErr != nil {
		return "", f.CreateSpaceErr
	}
	ref := f.nextRef("space")
	f.spaces[ref] = platform.Space{Ref: ref, Name: spec.Name, ParentRef: spec.ParentRef, CreatedAt: f.Now()}
	f.specs[ref] = spec
	return ref, nil
}

func (f *Fake) PostMessage(ctx context.Context, spaceRef string, msg platform.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PostMessageErr != nil {
		return "", f.PostMessageErr
	}
	ref := f.nextRef("msg")
	f.posts = append(f.posts, PostedMessage{SpaceRef: spaceRef, MessageRef: ref, Message: msg})
	return ref, nil
}

func (f *Fake) ClearActions(ctx context.Context, spaceRef, messageRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ClearActionsErr != nil {
		return f.ClearActionsErr
	}
	f.cleared = append(f.cleared, messageRef)
	return nil
}

func (f *Fake) DirectNotify(ctx context.Context, userID string, msg platform.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NotifyHook != nil {
		f.NotifyHook(userID)
	}
	if f.NotifyErr != nil {
		return f.NotifyErr
	}
	f.notices = append(f.notices, Notice{UserID: userID, Message: msg})
	return nil
}

func (f *Fake) DeleteSpace(ctx context.Context, spaceRef string) error {
	f.mu.Lock()
	err := f.DeleteSpaceErr
	if err == nil {
		if _, ok := f.spaces[spaceRef]; !ok {
			err = platform.ErrNotFound
		} else {
			delete(f.spaces, spaceRef)
			f.deleted = append(f.deleted, spaceRef)
		}
	}
	f.mu.Unlock()

	select {
	case f.deleteSignal <- spaceRef:
	default:
	}
	return err
}

func (f *Fake) GetSpace(ctx context.Context, spaceRef string) (*platform.Space, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	space, ok := f.spaces[spaceRef]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return &space, nil
}

func (f *Fake) ListSpaces(ctx context.Context, parentRef string) ([]platform.Space, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []platform.Space
	for _, space := range f.spaces {
		if space.ParentRef == parentRef {
			out = append(out, space)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out, nil
}

func (f *Fake) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.PingErr
}

// ==========================
// Inspection helpers
// ==========================

func (f *Fake) Posts() []PostedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PostedMessage(nil), f.posts...)
}

// PostsTo returns the messages posted to one space.
func (f *Fake) PostsTo(spaceRef string) []PostedMessage {
	var out []PostedMessage
	for _, p := range f.Posts() {
		if p.SpaceRef == spaceRef {
			out = append(out, p)
		}
	}
	return out
}

func (f *Fake) Notices() []Notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notice(nil), f.notices...)
}

func (f *Fake) Cleared() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cleared...)
}

func (f *Fake) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func (f *Fake) Spec(spaceRef string) (platform.SpaceSpec, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	spec, ok := f.specs[spaceRef]
	return spec, ok
}

func (f *Fake) CreateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.createCalls
}

// WaitForDelete blocks until a deletion of any space is attempted or timeout elapses.
func (f *Fake) WaitForDelete(timeout time.Duration) (string, bool) {
	select {
	case ref := <-f.deleteSignal:
		return ref, true
	case <-time.After(timeout):
		return "", false
	}
}

// SetErr updates a failure knob under the lock.
func (f *Fake) SetErr(set func(f *Fake)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set(f)
}
