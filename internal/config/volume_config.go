package config

type VolumeConfig struct {
	Image     string `yaml:"image" env:"VOLUME_IMAGE" env-default:"afs.img"`
	Size      int64  `yaml:"size" env:"VOLUME_SIZE" env-default:"1048576"`
	BlockSize uint32 `yaml:"block_size" env:"VOLUME_BLOCK_SIZE" env-default:"4096"`
	MountPath string `yaml:"mount_path" env:"VOLUME_MOUNT_PATH" env-default:"/"`

	// ProcPath is where the in-memory backend is mounted; empty disables it.
	ProcPath string `yaml:"proc_path" env:"VOLUME_PROC_PATH" env-default:"/proc"`

	// PGPath is where the postgres backend is mounted when database.enabled is set.
	PGPath  string `yaml:"pg_path" env:"VOLUME_PG_PATH" env-default:"/pg"`
	PGToken string `yaml:"pg_token" env:"VOLUME_PG_TOKEN" env-default:"default"`
}

type CacheConfig struct {
	// MaxBytes caps the bytes held by the block cache; 0 means unbounded.
	MaxBytes int64 `yaml:"max_bytes" env:"CACHE_MAX_BYTES" env-default:"0"`
}
