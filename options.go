package bmg

type parseConfig struct {
	limits          Limits
	strictCrossRefs bool
	codec           *Codec
}

type ParseOption func(*parseConfig)

func WithLimits(l Limits) ParseOption {
	return func(c *parseConfig) { c.limits = l }
}

// WithStrictCrossRefs makes id-mode MID1 tables fail with ErrAmbiguousCrossRef
// when the pool scan cannot pair every id with a string.
func WithStrictCrossRefs(v bool) ParseOption {
	return func(c *parseConfig) { c.strictCrossRefs = v }
}

// WithCodec replaces DefaultCodec for decoding and for every later edit and build.
func WithCodec(codec *Codec) ParseOption {
	return func(c *parseConfig) { c.codec = codec }
}

func newParseConfig(opts []ParseOption) parseConfig {
	cfg := parseConfig{limits: defaultLimits(), codec: DefaultCodec}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.limits = cfg.limits.withDefaults()
	if cfg.codec == nil {
		cfg.codec = DefaultCodec
	}
	return cfg
}

type buildConfig struct {
	verify bool
}

type BuildOption func(*buildConfig)

// WithVerify controls whether Build re-parses its output and checks that every
// entry (and, in pointer mode, every cross-reference) reads back unchanged.
// Enabled by default.
func WithVerify(v bool) BuildOption {
	return func(c *buildConfig) { c.verify = v }
}

type patchWriteConfig struct {
	limits      Limits
	compression Compression
}

type PatchWriteOption func(*patchWriteConfig)

func WithPatchWriteLimits(l Limits) PatchWriteOption {
	return func(c *patchWriteConfig) { c.limits = l }
}

func WithPatchCompression(comp Compression) PatchWriteOption {
	return func(c *patchWriteConfig) { c.compression = comp }
}

type patchReadConfig struct {
	limits       Limits
	ignoreSource bool
}

type PatchReadOption func(*patchReadConfig)

func WithPatchReadLimits(l Limits) PatchReadOption {
	return func(c *patchReadConfig) { c.limits = l }
}

// WithIgnoreSource lets ApplyPatch proceed when the container's fingerprint
// differs from the one recorded in the patch.
func WithIgnoreSource(v bool) PatchReadOption {
	return func(c *patchReadConfig) { c.ignoreSource = v }
}
