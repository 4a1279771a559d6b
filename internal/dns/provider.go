package dns

import "context"

// Provider is the interface that DNS providers must implement. Every method
// returns *Error on failure.
type Provider interface {
	Kind() Kind
	// Connected reports whether credentials are available. A provider that
	// is not connected is skipped by aggregation rather than failing it.
	Connected() bool
	ListZones(ctx context.Context) ([]Zone, error)
	ListRecords(ctx context.Context, zone Zone) ([]Record, error)
	CreateRecord(ctx context.Context, zone Zone, req CreateRecordRequest) (Record, error)
	// UpdateRecord needs the full current record because some providers
	// can only replace, not patch.
	UpdateRecord(ctx context.Context, zone Zone, record Record, req UpdateRecordRequest) (Record, error)
	DeleteRecord(ctx context.Context, zone Zone, record Record) error
}
