package keystore

import (
	"github.com/lleo/go-keystore/hamt64"
	"go.uber.org/zap"
)

// Option configures a KeyStore at construction time.
type Option func(*KeyStore)

// WithLogger sets the logger a KeyStore reports sorts and (de)serialization
// summaries to. The default discards everything.
func WithLogger(lgr *zap.Logger) Option {
	return func(ks *KeyStore) {
		if lgr != nil {
			ks.lgr = lgr
		}
	}
}

// WithTableOption selects the hamt64 table representation backing the
// store: hamt64.HybridTables (default), hamt64.CompTablesOnly or
// hamt64.FullTablesOnly.
func WithTableOption(opt int) Option {
	return func(ks *KeyStore) {
		if _, ok := hamt64.TableOptionName[opt]; ok {
			ks.tableOption = opt
		}
	}
}

// WithCodec replaces the Codec used by Serialize and Deserialize.
func WithCodec(c *Codec) Option {
	return func(ks *KeyStore) {
		if c != nil {
			ks.codec = c
		}
	}
}
