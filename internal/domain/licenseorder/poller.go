package licenseorder

import (
	"strconv"
	"strings"

	"licensedesk/internal/domain/licensing"
)

// PollState is the eligibility poller's lifecycle state.
type PollState string

const (
	PollIdle     PollState = "idle"
	PollQuerying PollState = "querying"
	PollSettled  PollState = "settled"
	PollErrored  PollState = "errored"
)

// QueryKey is the state the eligibility query depends on.
type QueryKey struct {
	Club      int
	Year      int
	YearOK    bool
	MemberIDs []int
}

// Ready reports whether the key can be sent to the eligibility service.
func (k QueryKey) Ready() bool {
	return k.Club > 0 && k.YearOK && len(k.MemberIDs) > 0
}

// String is the canonical form used to detect changes.
func (k QueryKey) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(k.Club))
	b.WriteByte('|')
	if k.YearOK {
		b.WriteString(strconv.Itoa(k.Year))
	}
	b.WriteByte('|')
	for i, id := range k.MemberIDs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(id))
	}
	return b.String()
}

// Request builds the eligibility query for a ready key.
func (k QueryKey) Request() licensing.EligibilityRequest {
	return licensing.EligibilityRequest{
		Club:      k.Club,
		MemberIDs: append([]int(nil), k.MemberIDs...),
		Year:      k.Year,
	}
}

// QueryKey derives the current query key from the reconciler's state.
func (r *Reconciler) QueryKey() QueryKey {
	year, ok := r.Year()
	return QueryKey{
		Club:      r.clubID,
		Year:      year,
		YearOK:    ok,
		MemberIDs: r.ValidSelectedIDs(),
	}
}

// Poller decides when eligibility must be re-queried and which response may
// be applied. Tokens strictly increase; only the latest one is accepted.
type Poller struct {
	latest uint64
	state  PollState
	key    string
	seen   bool
}

// NewPoller returns an idle poller that has observed no state yet.
func NewPoller() *Poller {
	return &Poller{state: PollIdle}
}

// State returns the current lifecycle state.
func (p *Poller) State() PollState { return p.state }

// Latest returns the most recently allocated token.
func (p *Poller) Latest() uint64 { return p.latest }

// Changed reports whether key differs from the last observed key.
func (p *Poller) Changed(key QueryKey) bool {
	return !p.seen || p.key != key.String()
}

// Begin allocates a token for a query of key and enters querying.
// POST: Any token issued earlier is stale
func (p *Poller) Begin(key QueryKey) uint64 {
	p.latest++
	p.key = key.String()
	p.seen = true
	p.state = PollQuerying
	return p.latest
}

// Idle records a key that cannot be queried and discards in-flight responses.
func (p *Poller) Idle(key QueryKey) {
	p.latest++
	p.key = key.String()
	p.seen = true
	p.state = PollIdle
}

// Settle accepts a response for token.
// POST: Returns false and leaves state untouched when token is stale
func (p *Poller) Settle(token uint64, err error) bool {
	if token != p.latest {
		return false
	}
	if err != nil {
		p.state = PollErrored
	} else {
		p.state = PollSettled
	}
	return true
}

// Forget makes the next Changed call report true, so the same key is re-queried.
func (p *Poller) Forget() {
	p.seen = false
}
