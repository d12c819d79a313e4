package watchlist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"price-notifications/internal/types"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Watchlist is the persisted user configuration: the tracked assets, their
// thresholds and the contact endpoint of the message transport.
type Watchlist struct {
	Currencies  []string
	PricedIn    string
	NotifyAbove map[string]decimal.Decimal
	NotifyBelow map[string]decimal.Decimal
	MyNumber    string
	ToNumber    string
	AccountID   string
	AuthToken   string
}

// file is the on-disk layout. Thresholds are kept as JSON numbers.
type file struct {
	Currencies  []string               `json:"currencies"`
	PricedIn    string                 `json:"priced_in"`
	NotifyAbove map[string]json.Number `json:"notify_above"`
	NotifyBelow map[string]json.Number `json:"notify_below"`
	MyNumber    string                 `json:"my_number"`
	ToNumber    string                 `json:"to_number"`
	AccountID   string                 `json:"account_id"`
	AuthToken   string                 `json:"auth_token"`
}

// New returns an empty watchlist priced in usd.
func New() *Watchlist {
	return &Watchlist{
		Currencies:  []string{},
		PricedIn:    "usd",
		NotifyAbove: map[string]decimal.Decimal{},
		NotifyBelow: map[string]decimal.Decimal{},
	}
}

// Exists reports whether a configuration file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Load reads the watchlist from path. A missing file yields New().
func Load(path string) (*Watchlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, errors.Wrap(err, "could not read config")
	}

	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "could not parse config %s", path)
	}

	w := New()
	w.Currencies = lo.Uniq(f.Currencies)
	if f.PricedIn != "" {
		w.PricedIn = f.PricedIn
	}
	w.MyNumber, w.ToNumber = f.MyNumber, f.ToNumber
	w.AccountID, w.AuthToken = f.AccountID, f.AuthToken

	if w.NotifyAbove, err = toDecimals(f.NotifyAbove); err != nil {
		return nil, errors.Wrap(err, "notify_above")
	}
	if w.NotifyBelow, err = toDecimals(f.NotifyBelow); err != nil {
		return nil, errors.Wrap(err, "notify_below")
	}
	return w, nil
}

func toDecimals(in map[string]json.Number) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(in))
	for id, n := range in {
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return nil, errors.Wrapf(err, "invalid threshold for %s", id)
		}
		out[id] = d
	}
	return out, nil
}

func toNumbers(in map[string]decimal.Decimal) map[string]json.Number {
	out := make(map[string]json.Number, len(in))
	for id, d := range in {
		out[id] = json.Number(d.String())
	}
	return out
}

// MarshalJSON encodes w in the config file layout.
func (w *Watchlist) MarshalJSON() ([]byte, error) {
	return json.Marshal(file{
		Currencies:  w.Currencies,
		PricedIn:    w.PricedIn,
		NotifyAbove: toNumbers(w.NotifyAbove),
		NotifyBelow: toNumbers(w.NotifyBelow),
		MyNumber:    w.MyNumber,
		ToNumber:    w.ToNumber,
		AccountID:   w.AccountID,
		AuthToken:   w.AuthToken,
	})
}

// Save rewrites the whole file. The write goes through a temporary file so a
// crash never leaves a truncated config behind.
func (w *Watchlist) Save(path string) error {
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return errors.Wrap(err, "could not encode config")
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.json")
	if err != nil {
		return errors.Wrap(err, "could not create temporary config")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "could not write config")
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(err, "could not chmod config")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "could not close config")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "could not replace config")
}

// IsTracked reports whether id is in the tracked-asset set.
func (w *Watchlist) IsTracked(id string) bool {
	return lo.Contains(w.Currencies, id)
}

// Assets returns the tracked ids in insertion order.
func (w *Watchlist) Assets() []string {
	return append([]string{}, w.Currencies...)
}

// Add appends ids to the tracked set keeping insertion order. Ids already
// tracked are returned as duplicates.
func (w *Watchlist) Add(ids ...string) (added, duplicates []string) {
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if w.IsTracked(id) {
			duplicates = append(duplicates, id)
			continue
		}
		w.Currencies = append(w.Currencies, id)
		added = append(added, id)
	}
	return added, duplicates
}

// Remove drops id from the tracked set together with its thresholds.
func (w *Watchlist) Remove(id string) error {
	if !w.IsTracked(id) {
		return errors.Wrapf(types.ErrUnsupportedAsset, "%s is not tracked", id)
	}
	w.Currencies = lo.Without(w.Currencies, id)
	delete(w.NotifyAbove, id)
	delete(w.NotifyBelow, id)
	return nil
}

// SetThresholds registers the bounds that are valid; invalid ones leave the
// current value untouched.
func (w *Watchlist) SetThresholds(id string, upper, lower decimal.NullDecimal) error {
	if !w.IsTracked(id) {
		return errors.Wrapf(types.ErrConfigInconsistency, "cannot set thresholds for untracked asset %s", id)
	}
	if upper.Valid {
		w.NotifyAbove[id] = upper.Decimal
	}
	if lower.Valid {
		w.NotifyBelow[id] = lower.Decimal
	}
	return nil
}

// ClearThresholds removes both bounds of id.
func (w *Watchlist) ClearThresholds(id string) error {
	if !w.IsTracked(id) {
		return errors.Wrapf(types.ErrConfigInconsistency, "cannot clear thresholds for untracked asset %s", id)
	}
	delete(w.NotifyAbove, id)
	delete(w.NotifyBelow, id)
	return nil
}

// Thresholds returns the bounds of id; ok is false when none are registered.
func (w *Watchlist) Thresholds(id string) (types.AssetThresholds, bool) {
	var t types.AssetThresholds
	if d, found := w.NotifyAbove[id]; found {
		t.Upper = decimal.NewNullDecimal(d)
	}
	if d, found := w.NotifyBelow[id]; found {
		t.Lower = decimal.NewNullDecimal(d)
	}
	return t, t.Upper.Valid || t.Lower.Valid
}

// Validate reports thresholds registered for assets no longer tracked.
func (w *Watchlist) Validate() error {
	orphans := lo.Uniq(append(w.orphans(w.NotifyAbove), w.orphans(w.NotifyBelow)...))
	if len(orphans) == 0 {
		return nil
	}
	sort.Strings(orphans)
	return errors.Wrapf(types.ErrConfigInconsistency, "thresholds set for untracked assets: %s", strings.Join(orphans, ", "))
}

func (w *Watchlist) orphans(m map[string]decimal.Decimal) []string {
	return lo.Filter(lo.Keys(m), func(id string, _ int) bool {
		return !w.IsTracked(id)
	})
}

// InvertedBounds lists tracked assets whose upper bound does not exceed the lower one.
func (w *Watchlist) InvertedBounds() []string {
	return lo.Filter(w.Currencies, func(id string, _ int) bool {
		t, _ := w.Thresholds(id)
		return t.Upper.Valid && t.Lower.Valid && !t.Upper.Decimal.GreaterThan(t.Lower.Decimal)
	})
}

func (w *Watchlist) Contact() types.Contact {
	return types.Contact{
		From:      w.MyNumber,
		To:        w.ToNumber,
		AccountID: w.AccountID,
		AuthToken: w.AuthToken,
	}
}

// Snapshot returns a deep copy safe to read while the original is edited.
func (w *Watchlist) Snapshot() *Watchlist {
	c := *w
	c.Currencies = append([]string{}, w.Currencies...)
	c.NotifyAbove = lo.Assign(w.NotifyAbove)
	c.NotifyBelow = lo.Assign(w.NotifyBelow)
	return &c
}
