package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/netiface/nfsbridge/pkg/backend"
	"github.com/netiface/nfsbridge/pkg/backend/mock"
	"github.com/netiface/nfsbridge/pkg/backend/protocol"
	"github.com/netiface/nfsbridge/pkg/nfsclient"
)

// NFSBackendOptions is the decoded form of backend.nfs.
type NFSBackendOptions struct {
	MachineName  string        `mapstructure:"machine_name" validate:"max=255"`
	MountPort    int           `mapstructure:"mount_port" validate:"gte=0,lte=65535"`
	NFSPort      int           `mapstructure:"nfs_port" validate:"gte=0,lte=65535"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gte=0"`
	MaxReadSize  uint32        `mapstructure:"max_read_size" validate:"omitempty,gte=512"`
	MaxWriteSize uint32        `mapstructure:"max_write_size" validate:"omitempty,gte=512"`
	ReadDirCount uint32        `mapstructure:"readdir_count" validate:"omitempty,gte=512"`

	// 0 disables throttling
	MaxRequestsPerSecond uint `mapstructure:"max_requests_per_second"`
	RequestBurst         uint `mapstructure:"request_burst"`
}

// DecodeNFSOptions decodes and validates the backend.nfs section.
// Durations may be given as strings ("30s") or integer nanoseconds.
func DecodeNFSOptions(options map[string]any) (nfsclient.Options, error) {
	var opts NFSBackendOptions
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &opts,
	})
	if err != nil {
		return nfsclient.Options{}, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return nfsclient.Options{}, fmt.Errorf("failed to decode nfs backend options: %w", err)
	}

	if err := validate.Struct(&opts); err != nil {
		return nfsclient.Options{}, formatValidationError(err)
	}

	return nfsclient.Options{
		MachineName:  opts.MachineName,
		MountPort:    opts.MountPort,
		NFSPort:      opts.NFSPort,
		Timeout:      opts.Timeout,
		MaxReadSize:  opts.MaxReadSize,
		MaxWriteSize: opts.MaxWriteSize,
		ReadDirCount: opts.ReadDirCount,

		MaxRequestsPerSecond: opts.MaxRequestsPerSecond,
		RequestBurst:         opts.RequestBurst,
	}, nil
}

// CreateBackendFactory returns the backend.Factory selected by cfg.Type.
//
// Supported types:
//   - "nfs": pkg/backend/protocol over pkg/nfsclient
//   - "mock": pkg/backend/mock (offline, fixed table)
func CreateBackendFactory(cfg *BackendConfig) (backend.Factory, error) {
	t, err := backend.ParseType(cfg.Type)
	if err != nil {
		return nil, err
	}

	switch t {
	case backend.TypeMock:
		return mock.Factory(), nil
	default:
		opts, err := DecodeNFSOptions(cfg.NFS)
		if err != nil {
			return nil, err
		}
		return protocol.Factory(opts), nil
	}
}
