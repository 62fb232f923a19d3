// Package discord provides an [output.Sink] that plays readback clips into
// a Discord voice channel via the bwmarrin/discordgo library. Clips are
// converted to Discord's 48 kHz stereo format, encoded to Opus in 20 ms
// frames, and streamed over an active voice connection.
//
// The sink is transmit-only: it joins the channel deafened and never reads
// incoming voice. It requires an active *discordgo.Session owned by the
// caller; [New] joins the voice channel and [Sink.Close] leaves it.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"layeh.com/gopus"

	"github.com/vhfnav/readback/pkg/audio"
	"github.com/vhfnav/readback/pkg/output"
)

// Discord voice uses 48 kHz stereo Opus at 20 ms frame size.
const (
	opusSampleRate  = 48000
	opusChannels    = 2
	opusFrameSizeMs = 20
	// opusFrameSize is the number of samples per channel per 20 ms frame.
	opusFrameSize = opusSampleRate * opusFrameSizeMs / 1000 // 960
	// opusFrameBytes is the exact PCM input size for one Opus frame:
	// 960 samples/channel x 2 channels x 2 bytes/sample = 3840 bytes.
	opusFrameBytes = opusFrameSize * opusChannels * 2
)

var _ output.Sink = (*Sink)(nil)

var errClosed = errors.New("discord: sink closed")

// Sink streams clips into one Discord voice channel. Play calls are
// serialised so clips are audible in call order.
type Sink struct {
	vc  *discordgo.VoiceConnection
	enc *gopus.Encoder

	// playMu serialises Play calls; the Opus encoder is stateful.
	playMu sync.Mutex

	done chan struct{}
	once sync.Once

	// disconnect tears down the voice connection. Defaults to
	// vc.Disconnect; overridden in tests.
	disconnect func() error
}

// Connect creates a gateway session from a bot token, opens it, and joins
// the given voice channel. The returned Sink owns the gateway session:
// Close tears down both the voice connection and the gateway.
//
// Use [New] instead when an application-level discordgo.Session already
// exists and should outlive the sink.
func Connect(token, guildID, channelID string) (*Sink, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildVoiceStates | discordgo.IntentsGuilds

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}

	s, err := New(dg, guildID, channelID)
	if err != nil {
		_ = dg.Close()
		return nil, err
	}

	vcDisconnect := s.disconnect
	s.disconnect = func() error {
		return errors.Join(vcDisconnect(), dg.Close())
	}
	return s, nil
}

// New joins the given voice channel and returns a Sink streaming into it.
// The channel is joined unmuted and deafened: readback only transmits.
func New(session *discordgo.Session, guildID, channelID string) (*Sink, error) {
	if session == nil {
		return nil, errors.New("discord: session must not be nil")
	}
	vc, err := session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, err)
	}
	enc, err := gopus.NewEncoder(opusSampleRate, opusChannels, gopus.Audio)
	if err != nil {
		_ = vc.Disconnect()
		return nil, fmt.Errorf("discord: create opus encoder: %w", err)
	}
	return &Sink{
		vc:         vc,
		enc:        enc,
		done:       make(chan struct{}),
		disconnect: vc.Disconnect,
	}, nil
}

// Play converts the clip to 48 kHz stereo, encodes it to Opus frames, and
// sends them over the voice connection. The final partial frame is padded
// with silence so the tail of the phrase is not cut. Play blocks until the
// whole clip has been handed to Discord or ctx is cancelled.
func (s *Sink) Play(ctx context.Context, clip audio.Clip) error {
	select {
	case <-s.done:
		return errClosed
	default:
	}
	if len(clip.Data) == 0 {
		return errors.New("discord: empty clip")
	}

	s.playMu.Lock()
	defer s.playMu.Unlock()

	pcm := audio.Convert(clip, audio.Format{SampleRate: opusSampleRate, Channels: opusChannels}).Data
	if rem := len(pcm) % opusFrameBytes; rem != 0 {
		pcm = append(pcm, make([]byte, opusFrameBytes-rem)...)
	}

	s.setSpeaking(true)
	defer s.setSpeaking(false)

	for off := 0; off < len(pcm); off += opusFrameBytes {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := s.enc.Encode(audio.BytesToInt16s(pcm[off:off+opusFrameBytes]), opusFrameSize, opusFrameBytes)
		if err != nil {
			return fmt.Errorf("discord: opus encode: %w", err)
		}
		select {
		case s.vc.OpusSend <- frame:
		case <-ctx.Done():
			return ctx.Err()
		case <-s.done:
			return errClosed
		}
	}
	return nil
}

// Close leaves the voice channel. Safe to call more than once; subsequent
// calls return nil.
func (s *Sink) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.disconnect()
	})
	return err
}

// setSpeaking sends a speaking notification to Discord, logging any errors.
func (s *Sink) setSpeaking(b bool) {
	if err := s.vc.Speaking(b); err != nil {
		slog.Warn("discord: speaking notification error", "speaking", b, "error", err)
	}
}
