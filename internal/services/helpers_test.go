package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/izikdepth/MemeBot/internal/repo"
	"github.com/izikdepth/MemeBot/internal/transport"
)

var ctxBG = context.Background()

// Base58 addresses for claim tests.
const (
	addrA = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	addrB = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
)

func newLedgerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("ledger_svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn+"?_pragma=busy_timeout(5000)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newLedger returns a ledger pinned to 2025-03-14 12:00 UTC.
func newLedger(t *testing.T) (*LedgerService, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC))
	return &LedgerService{DB: newLedgerDB(t), Clock: clock, EventTTL: time.Hour}, clock
}

type sentMessage struct {
	To   string
	Text string
}

// fakeTransport records calls. Users listed in unreachable refuse DMs.
type fakeTransport struct {
	mu          sync.Mutex
	unreachable map[string]bool
	dms         []sentMessage
	posts       []sentMessage
	rooms       []string
	deleted     []string
	deletedMsgs []transport.MessageRef
	reactions   []string
	seq         int

	// onDM runs before each direct message is delivered. Set it before use.
	onDM func(userID string)
}

func newFakeTransport(unreachable ...string) *fakeTransport {
	f := &fakeTransport{unreachable: map[string]bool{}}
	for _, u := range unreachable {
		f.unreachable[u] = true
	}
	return f
}

func (f *fakeTransport) next() string {
	f.seq++
	return fmt.Sprintf("m%d", f.seq)
}

func (f *fakeTransport) DeliverDirectMessage(_ context.Context, userID, text string) (transport.MessageRef, error) {
	if f.onDM != nil {
		f.onDM(userID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unreachable[userID] {
		return transport.MessageRef{}, transport.ErrUnreachable
	}
	f.dms = append(f.dms, sentMessage{To: userID, Text: text})
	return transport.MessageRef{ChannelID: "dm-" + userID, MessageID: f.next()}, nil
}

func (f *fakeTransport) OpenPrivateResource(_ context.Context, userID, label string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := "room-" + label
	f.rooms = append(f.rooms, id)
	return id, nil
}

func (f *fakeTransport) SendToChannel(_ context.Context, channelID, text string) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, sentMessage{To: channelID, Text: text})
	return transport.MessageRef{ChannelID: channelID, MessageID: f.next()}, nil
}

func (f *fakeTransport) DeleteResource(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, channelID)
	return nil
}

func (f *fakeTransport) ReactToMessage(_ context.Context, msg transport.MessageRef, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, msg.MessageID+":"+symbol)
	return nil
}

func (f *fakeTransport) DeleteMessage(_ context.Context, msg transport.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedMsgs = append(f.deletedMsgs, msg)
	return nil
}

func (f *fakeTransport) dmsTo(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.dms {
		if m.To == userID {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeTransport) deletedMessages() []transport.MessageRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.MessageRef(nil), f.deletedMsgs...)
}

func (f *fakeTransport) deletedRooms() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

var _ transport.Transport = (*fakeTransport)(nil)
