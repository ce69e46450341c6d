package app

import (
	"context"
	"time"

	"newspenguin/domain"
)

// State is the persisted sync state for one app key.
type State struct {
	AppKey    string        `json:"app_key"`
	Watermark *time.Time    `json:"watermark,omitempty"`
	Lease     *domain.Lease `json:"lease,omitempty"`
	LeaseLive bool          `json:"lease_live"`
}

// ReadState loads the watermark and lease records. LeaseLive reports whether
// the lease would still block a run at now.
func ReadState(ctx context.Context, store domain.StateStore, appKey string, staleAfter time.Duration, now time.Time) (State, error) {
	st := State{AppKey: appKey}

	wm, err := store.GetWatermark(ctx, WatermarkKey(appKey))
	if err != nil {
		return st, &domain.StoreError{Op: "get watermark", Key: WatermarkKey(appKey), Err: err}
	}
	st.Watermark = wm

	lease, err := store.GetLease(ctx, LeaseKey(appKey))
	if err != nil {
		return st, &domain.StoreError{Op: "get lease", Key: LeaseKey(appKey), Err: err}
	}
	st.Lease = lease
	if lease != nil {
		// the stores reclaim only leases strictly older than staleAfter
		st.LeaseLive = lease.Age(now) <= staleAfter
	}
	return st, nil
}

// OverrideWatermark writes ts as the watermark, bypassing the sync algorithm.
func OverrideWatermark(ctx context.Context, store domain.StateStore, appKey string, ts time.Time) error {
	if err := store.SetWatermark(ctx, WatermarkKey(appKey), ts); err != nil {
		return &domain.StoreError{Op: "set watermark", Key: WatermarkKey(appKey), Err: err}
	}
	return nil
}
