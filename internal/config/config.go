package config

import (
	"os"
	"path"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type Config interface {
	Init(cmd *cobra.Command) error
	Set()
}

type Server struct {
	PProf   bool
	Metrics bool

	Cert   string
	Key    string
	Bind   string
	Static string
	Proxy  bool

	BaseDir string
}

func (Server) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().Bool("pprof", false, "enable pprof endpoint available at /debug/pprof")
	if err := viper.BindPFlag("pprof", cmd.PersistentFlags().Lookup("pprof")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("metrics", true, "enable prometheus metrics available at /metrics")
	if err := viper.BindPFlag("metrics", cmd.PersistentFlags().Lookup("metrics")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("bind", "127.0.0.1:8080", "address/port/socket to serve portal")
	if err := viper.BindPFlag("bind", cmd.PersistentFlags().Lookup("bind")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("cert", "", "path to the SSL cert used to secure the portal server")
	if err := viper.BindPFlag("cert", cmd.PersistentFlags().Lookup("cert")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("key", "", "path to the SSL key used to secure the portal server")
	if err := viper.BindPFlag("key", cmd.PersistentFlags().Lookup("key")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("static", "", "path to client files to serve")
	if err := viper.BindPFlag("static", cmd.PersistentFlags().Lookup("static")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("proxy", false, "allow reverse proxies")
	if err := viper.BindPFlag("proxy", cmd.PersistentFlags().Lookup("proxy")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("basedir", "", "base directory for assets and database")
	if err := viper.BindPFlag("basedir", cmd.PersistentFlags().Lookup("basedir")); err != nil {
		return err
	}

	return nil
}

func (s *Server) Set() {
	s.PProf = viper.GetBool("pprof")
	s.Metrics = viper.GetBool("metrics")

	s.Cert = viper.GetString("cert")
	s.Key = viper.GetString("key")
	s.Bind = viper.GetString("bind")
	s.Static = viper.GetString("static")
	s.Proxy = viper.GetBool("proxy")

	s.BaseDir = baseDir()
}

func (s *Server) AbsPath(elem ...string) string {
	// prepend base path
	elem = append([]string{s.BaseDir}, elem...)
	return path.Join(elem...)
}

func baseDir() string {
	dir := viper.GetString("basedir")
	if dir != "" {
		return dir
	}

	if _, err := os.Stat("/etc/portal"); os.IsNotExist(err) {
		cwd, _ := os.Getwd()
		return cwd
	}

	return "/etc/portal"
}

type Database struct {
	Path string
}

func (Database) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().String("db.path", "", "path to the sqlite database (default <basedir>/portal.db)")
	if err := viper.BindPFlag("db.path", cmd.PersistentFlags().Lookup("db.path")); err != nil {
		return err
	}

	return nil
}

func (d *Database) Set() {
	d.Path = viper.GetString("db.path")
	if d.Path == "" {
		d.Path = path.Join(baseDir(), "portal.db")
	}
}

type Auth struct {
	Secret       string
	Admin        string
	Password     string
	PasswordHash string
	TokenTTL     time.Duration
	SecureCookie bool
	LoginRate    int // login attempts per minute and address
}

func (Auth) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().String("auth.secret", "", "secret used to sign session tokens")
	if err := viper.BindPFlag("auth.secret", cmd.PersistentFlags().Lookup("auth.secret")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("auth.admin", "admin", "admin account name")
	if err := viper.BindPFlag("auth.admin", cmd.PersistentFlags().Lookup("auth.admin")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("auth.password", "admin", "admin account password")
	if err := viper.BindPFlag("auth.password", cmd.PersistentFlags().Lookup("auth.password")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("auth.password-hash", "", "bcrypt hash of admin password, overrides auth.password")
	if err := viper.BindPFlag("auth.password-hash", cmd.PersistentFlags().Lookup("auth.password-hash")); err != nil {
		return err
	}

	cmd.PersistentFlags().Duration("auth.token-ttl", 7*24*time.Hour, "how long is a login session valid")
	if err := viper.BindPFlag("auth.token-ttl", cmd.PersistentFlags().Lookup("auth.token-ttl")); err != nil {
		return err
	}

	cmd.PersistentFlags().Bool("auth.secure-cookie", false, "send session cookie only over https")
	if err := viper.BindPFlag("auth.secure-cookie", cmd.PersistentFlags().Lookup("auth.secure-cookie")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("auth.login-rate", 10, "login attempts allowed per minute from a single address")
	if err := viper.BindPFlag("auth.login-rate", cmd.PersistentFlags().Lookup("auth.login-rate")); err != nil {
		return err
	}

	return nil
}

func (a *Auth) Set() {
	a.Secret = viper.GetString("auth.secret")
	a.Admin = viper.GetString("auth.admin")
	a.Password = viper.GetString("auth.password")
	a.PasswordHash = viper.GetString("auth.password-hash")
	a.TokenTTL = viper.GetDuration("auth.token-ttl")
	a.SecureCookie = viper.GetBool("auth.secure-cookie")
	a.LoginRate = viper.GetInt("auth.login-rate")
}

type Capture struct {
	FFmpegBinary   string
	FFprobeBinary  string
	LoadTimeout    time.Duration
	ProbeTimeout   time.Duration
	MaxConcurrency int
	PreviewTTL     time.Duration
	FrameCount     int // default number of cover candidates
}

func (Capture) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().String("capture.ffmpeg-binary", "ffmpeg", "path to ffmpeg binary")
	if err := viper.BindPFlag("capture.ffmpeg-binary", cmd.PersistentFlags().Lookup("capture.ffmpeg-binary")); err != nil {
		return err
	}

	cmd.PersistentFlags().String("capture.ffprobe-binary", "ffprobe", "path to ffprobe binary")
	if err := viper.BindPFlag("capture.ffprobe-binary", cmd.PersistentFlags().Lookup("capture.ffprobe-binary")); err != nil {
		return err
	}

	cmd.PersistentFlags().Duration("capture.load-timeout", 30*time.Second, "how long can a single frame capture take")
	if err := viper.BindPFlag("capture.load-timeout", cmd.PersistentFlags().Lookup("capture.load-timeout")); err != nil {
		return err
	}

	cmd.PersistentFlags().Duration("capture.probe-timeout", 8*time.Second, "how long can media probing take")
	if err := viper.BindPFlag("capture.probe-timeout", cmd.PersistentFlags().Lookup("capture.probe-timeout")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("capture.max-concurrency", 0, "frames captured at once within a batch, 0 for unbounded")
	if err := viper.BindPFlag("capture.max-concurrency", cmd.PersistentFlags().Lookup("capture.max-concurrency")); err != nil {
		return err
	}

	cmd.PersistentFlags().Duration("capture.preview-ttl", 10*time.Minute, "how long are unselected previews kept")
	if err := viper.BindPFlag("capture.preview-ttl", cmd.PersistentFlags().Lookup("capture.preview-ttl")); err != nil {
		return err
	}

	cmd.PersistentFlags().Int("capture.frame-count", 4, "number of cover candidates captured by default")
	if err := viper.BindPFlag("capture.frame-count", cmd.PersistentFlags().Lookup("capture.frame-count")); err != nil {
		return err
	}

	return nil
}

func (c *Capture) Set() {
	c.FFmpegBinary = viper.GetString("capture.ffmpeg-binary")
	c.FFprobeBinary = viper.GetString("capture.ffprobe-binary")
	c.LoadTimeout = viper.GetDuration("capture.load-timeout")
	c.ProbeTimeout = viper.GetDuration("capture.probe-timeout")
	c.MaxConcurrency = viper.GetInt("capture.max-concurrency")
	c.PreviewTTL = viper.GetDuration("capture.preview-ttl")
	c.FrameCount = viper.GetInt("capture.frame-count")
}

type Cache struct {
	ListTTL       time.Duration
	PlayerTTL     time.Duration
	CleanupPeriod time.Duration
}

func (Cache) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().Duration("cache.list-ttl", 10*time.Second, "how long is player list cached")
	if err := viper.BindPFlag("cache.list-ttl", cmd.PersistentFlags().Lookup("cache.list-ttl")); err != nil {
		return err
	}

	cmd.PersistentFlags().Duration("cache.player-ttl", time.Minute, "how long is a single player cached")
	if err := viper.BindPFlag("cache.player-ttl", cmd.PersistentFlags().Lookup("cache.player-ttl")); err != nil {
		return err
	}

	cmd.PersistentFlags().Duration("cache.cleanup-period", 30*time.Second, "how often are expired entries removed")
	if err := viper.BindPFlag("cache.cleanup-period", cmd.PersistentFlags().Lookup("cache.cleanup-period")); err != nil {
		return err
	}

	return nil
}

func (c *Cache) Set() {
	c.ListTTL = viper.GetDuration("cache.list-ttl")
	c.PlayerTTL = viper.GetDuration("cache.player-ttl")
	c.CleanupPeriod = viper.GetDuration("cache.cleanup-period")
}

type HlsProxy struct {
	Enabled            bool
	SegmentExpiration  time.Duration
	PlaylistExpiration time.Duration
}

func (HlsProxy) Init(cmd *cobra.Command) error {
	cmd.PersistentFlags().Bool("hlsproxy.enabled", false, "play streams through /hlsproxy instead of directly")
	if err := viper.BindPFlag("hlsproxy.enabled", cmd.PersistentFlags().Lookup("hlsproxy.enabled")); err != nil {
		return err
	}

	cmd.PersistentFlags().Duration("hlsproxy.segment-expiration", time.Minute, "how long are proxied segments kept in memory")
	if err := viper.BindPFlag("hlsproxy.segment-expiration", cmd.PersistentFlags().Lookup("hlsproxy.segment-expiration")); err != nil {
		return err
	}

	cmd.PersistentFlags().Duration("hlsproxy.playlist-expiration", time.Second, "how long are proxied playlists kept in memory")
	if err := viper.BindPFlag("hlsproxy.playlist-expiration", cmd.PersistentFlags().Lookup("hlsproxy.playlist-expiration")); err != nil {
		return err
	}

	return nil
}

func (h *HlsProxy) Set() {
	h.Enabled = viper.GetBool("hlsproxy.enabled")
	h.SegmentExpiration = viper.GetDuration("hlsproxy.segment-expiration")
	h.PlaylistExpiration = viper.GetDuration("hlsproxy.playlist-expiration")
}
