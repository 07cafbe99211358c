// Package player implements the engine's StreamPlayer contract on top of
// beep: progressive MP3 decode for live streams, cached-file decode (with
// seeking and known duration) for on-demand episodes.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/airwaves-cli/airwaves/internal/cache"
	"github.com/airwaves-cli/airwaves/internal/config"
	"github.com/airwaves-cli/airwaves/internal/engine"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSampleRate   = beep.SampleRate(44100)
	SpeakerBufferSize   = time.Millisecond * 250
	ReadTimeout         = 5 * time.Second
	VolumeCurveExponent = 0.5
	MinVolumeDB         = -10.0
)

// Relies on context cancellation to clean up the spawned read goroutine.
type contextReader struct {
	reader  io.Reader
	ctx     context.Context
	timeout time.Duration
}

func (cr *contextReader) Read(p []byte) (n int, err error) {
	select {
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	default:
	}

	timer := time.NewTimer(cr.timeout)
	defer timer.Stop()

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)

	go func() {
		n, err := cr.reader.Read(p)
		select {
		case done <- result{n, err}:
		case <-cr.ctx.Done():
		}
	}()

	select {
	case res := <-done:
		return res.n, res.err
	case <-timer.C:
		return 0, fmt.Errorf("read timeout: no data received for %v", cr.timeout)
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	}
}

// Player streams audio through the speaker. Retry and reconnect policy
// live in the engine; the player reports a single error event per failure.
type Player struct {
	mu sync.Mutex

	format      beep.Format
	speakerInit bool

	streamer   beep.StreamSeekCloser
	ctrl       *beep.Ctrl
	volume     *effects.Volume
	cancelLoad context.CancelFunc
	loadGen    uint64 // discards events from superseded loads

	live      bool
	seekable  bool
	liveStart time.Time

	volumePercent int
	httpClient    *http.Client
	fileCache     *cache.Cache

	handler func(engine.Event)
}

// NewPlayer creates a Player. fileCache may be nil, in which case episode
// audio is not cached between runs.
func NewPlayer(fileCache *cache.Cache) *Player {
	httpClient := &http.Client{
		Timeout: 0, // no overall timeout, streams are long-lived
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 15 * time.Second,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
			DisableCompression:    true,
		},
	}

	return &Player{
		format: beep.Format{
			SampleRate:  DefaultSampleRate,
			NumChannels: 2,
			Precision:   2,
		},
		volumePercent: config.DefaultVolume,
		httpClient:    httpClient,
		fileCache:     fileCache,
	}
}

// SetEventHandler registers the engine's event sink. Events are always
// delivered from the player's own goroutines.
func (p *Player) SetEventHandler(h func(engine.Event)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

func (p *Player) emit(gen uint64, ev engine.Event) {
	p.mu.Lock()
	if gen != p.loadGen {
		p.mu.Unlock()
		return
	}
	h := p.handler
	p.mu.Unlock()

	if h != nil {
		h(ev)
	}
}

// Load starts loading the given URI, replacing any current stream. The
// heavy lifting happens on a background goroutine; completion is signalled
// through ready/error events.
func (p *Player) Load(uri string, live bool) error {
	if uri == "" {
		return fmt.Errorf("no stream URI")
	}

	p.mu.Lock()
	p.stopLocked()
	ctx, cancel := context.WithCancel(context.Background())
	p.cancelLoad = cancel
	p.loadGen++
	gen := p.loadGen
	p.live = live
	p.seekable = false
	p.mu.Unlock()

	go func() {
		p.emit(gen, engine.Event{Kind: engine.EventBuffering})

		var err error
		if live {
			err = p.loadLive(ctx, gen, uri)
		} else {
			err = p.loadEpisode(ctx, gen, uri)
		}

		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Warn().Err(err).Str("uri", uri).Msg("Stream load failed")
			p.emit(gen, engine.Event{Kind: engine.EventError, Err: err})
		}
	}()

	return nil
}

func (p *Player) loadLive(ctx context.Context, gen uint64, uri string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", fmt.Sprintf("Airwaves/%s", config.AppVersion))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("stream returned status %d: %s", resp.StatusCode, resp.Status)
	}

	body := &contextReader{reader: resp.Body, ctx: ctx, timeout: ReadTimeout}
	streamer, format, err := mp3.Decode(readCloser{Reader: body, closer: resp.Body})
	if err != nil {
		resp.Body.Close()
		return fmt.Errorf("failed to decode stream: %w", err)
	}

	return p.install(ctx, gen, streamer, format, false)
}

func (p *Player) loadEpisode(ctx context.Context, gen uint64, uri string) error {
	path := ""
	if p.fileCache != nil {
		path = p.fileCache.AudioPath(uri)
	}

	if path == "" {
		downloaded, err := p.download(ctx, uri)
		if err != nil {
			return err
		}
		path = downloaded
	} else {
		log.Debug().Str("uri", uri).Msg("Episode audio loaded from cache")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open episode audio: %w", err)
	}

	streamer, format, err := mp3.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to decode episode audio: %w", err)
	}

	return p.install(ctx, gen, streamer, format, true)
}

// download fetches episode audio into the file cache (or a temp file when
// no cache is configured) and returns the local path.
func (p *Player) download(ctx context.Context, uri string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", fmt.Sprintf("Airwaves/%s", config.AppVersion))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch episode audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("episode audio returned status %d: %s", resp.StatusCode, resp.Status)
	}

	if p.fileCache != nil {
		return p.fileCache.SaveAudio(uri, resp.Body)
	}

	tmp, err := os.CreateTemp("", "airwaves-episode-*.mp3")
	if err != nil {
		return "", fmt.Errorf("failed to create temp audio file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to download episode audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close temp audio file: %w", err)
	}
	return tmp.Name(), nil
}

// install wires the decoded streamer into the speaker, paused, and emits
// the ready event. The engine unpauses through Play.
func (p *Player) install(ctx context.Context, gen uint64, streamer beep.StreamSeekCloser, format beep.Format, seekable bool) error {
	if err := p.initSpeaker(format.SampleRate); err != nil {
		streamer.Close()
		return err
	}

	p.mu.Lock()
	if gen != p.loadGen {
		p.mu.Unlock()
		streamer.Close()
		return context.Canceled
	}

	p.streamer = streamer
	p.format = format
	p.seekable = seekable
	p.liveStart = time.Now()

	volumeLevel := percentToExponent(float64(p.volumePercent))
	p.volume = &effects.Volume{
		Streamer: streamer,
		Base:     2,
		Volume:   volumeLevel,
		Silent:   p.volumePercent == 0,
	}
	p.ctrl = &beep.Ctrl{
		Streamer: p.volume,
		Paused:   true,
	}
	ctrl := p.ctrl
	p.mu.Unlock()

	speaker.Clear()
	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		if ctx.Err() != nil {
			return
		}
		p.emit(gen, engine.Event{Kind: engine.EventEnded})
	})))

	p.emit(gen, engine.Event{Kind: engine.EventReady})
	return nil
}

func (p *Player) initSpeaker(sampleRate beep.SampleRate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.speakerInit || sampleRate != p.format.SampleRate {
		if err := speaker.Init(sampleRate, sampleRate.N(SpeakerBufferSize)); err != nil {
			return fmt.Errorf("failed to initialize speaker: %w", err)
		}
		p.format.SampleRate = sampleRate
		p.speakerInit = true
		log.Debug().Msgf("Speaker initialized with sample rate: %d Hz, buffer: %v", sampleRate, SpeakerBufferSize)
	}
	return nil
}

// Play unpauses the current stream.
func (p *Player) Play() {
	p.mu.Lock()
	ctrl := p.ctrl
	p.mu.Unlock()

	if ctrl == nil {
		return
	}
	speaker.Lock()
	ctrl.Paused = false
	speaker.Unlock()
}

// Pause pauses the current stream.
func (p *Player) Pause() {
	p.mu.Lock()
	ctrl := p.ctrl
	p.mu.Unlock()

	if ctrl == nil {
		return
	}
	speaker.Lock()
	ctrl.Paused = true
	speaker.Unlock()
}

// Stop releases the current stream.
func (p *Player) Stop() {
	p.mu.Lock()
	p.stopLocked()
	p.loadGen++ // orphan any in-flight load
	p.mu.Unlock()

	speaker.Clear()
}

// stopLocked cancels the active load and closes the streamer. Callers hold
// the mutex.
func (p *Player) stopLocked() {
	if p.cancelLoad != nil {
		p.cancelLoad()
		p.cancelLoad = nil
	}
	if p.streamer != nil {
		p.streamer.Close()
		p.streamer = nil
	}
	p.ctrl = nil
	p.volume = nil
}

// SeekTo seeks to an absolute position. Live streams cannot seek.
func (p *Player) SeekTo(pos time.Duration) error {
	p.mu.Lock()
	streamer := p.streamer
	seekable := p.seekable
	format := p.format
	p.mu.Unlock()

	if streamer == nil {
		return fmt.Errorf("nothing loaded")
	}
	if !seekable {
		return fmt.Errorf("stream is not seekable")
	}

	n := format.SampleRate.N(pos)
	speaker.Lock()
	if n > streamer.Len() {
		n = streamer.Len()
	}
	if n < 0 {
		n = 0
	}
	err := streamer.Seek(n)
	speaker.Unlock()

	if err != nil {
		return fmt.Errorf("seek failed: %w", err)
	}
	return nil
}

// Position returns the current playback position. For live streams it is
// the wall-clock time since the stream started.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	streamer := p.streamer
	seekable := p.seekable
	format := p.format
	start := p.liveStart
	p.mu.Unlock()

	if streamer == nil {
		return 0
	}
	if !seekable {
		if start.IsZero() {
			return 0
		}
		return time.Since(start)
	}

	speaker.Lock()
	n := streamer.Position()
	speaker.Unlock()
	return format.SampleRate.D(n)
}

// Duration returns the total duration of the current stream and whether it
// is known. Live streams have no duration.
func (p *Player) Duration() (time.Duration, bool) {
	p.mu.Lock()
	streamer := p.streamer
	seekable := p.seekable
	format := p.format
	p.mu.Unlock()

	if streamer == nil || !seekable {
		return 0, false
	}

	speaker.Lock()
	n := streamer.Len()
	speaker.Unlock()
	return format.SampleRate.D(n), true
}

// SetVolume sets the output volume as a percentage [0, 100].
func (p *Player) SetVolume(volumePercent int) {
	volumePercent = config.ClampVolume(volumePercent)

	p.mu.Lock()
	p.volumePercent = volumePercent
	volume := p.volume
	p.mu.Unlock()

	if volume == nil {
		log.Debug().Msgf("Volume stored as %d%% (will be applied when playback starts)", volumePercent)
		return
	}

	volumeLevel := percentToExponent(float64(volumePercent))
	speaker.Lock()
	volume.Volume = volumeLevel
	volume.Silent = volumePercent == 0
	speaker.Unlock()

	log.Debug().Msgf("Volume set to %d%% (%.2f dB)", volumePercent, volumeLevel)
}

// Volume returns the current volume percentage.
func (p *Player) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volumePercent
}

func percentToExponent(pct float64) float64 {
	if pct <= 0 {
		return MinVolumeDB
	}
	if pct >= 100 {
		return 0
	}

	normalized := pct / 100.0
	adjusted := math.Pow(normalized, VolumeCurveExponent)
	return (1.0 - adjusted) * MinVolumeDB
}

// readCloser pairs a wrapped reader with the underlying closer.
type readCloser struct {
	io.Reader
	closer io.Closer
}

func (rc readCloser) Close() error {
	return rc.closer.Close()
}
