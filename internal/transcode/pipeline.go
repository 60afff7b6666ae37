// Pipeline ties together the per-stream transcoders and the output muxer
// into the single packet pump described in spec §4.F.3.
package transcode

import (
	"errors"
	"time"

	"github.com/localmedia/transcoded/internal/codecprovider"
	"github.com/localmedia/transcoded/internal/errtax"
	"github.com/localmedia/transcoded/internal/mediaprobe"
)

// Pipeline owns the input context, the two stream transcoders, and the
// output muxer for one job. Close unwinds every owned resource in the
// order mandated by spec §4.G: packet → output context → audio
// transcoder → video transcoder → input context.
type Pipeline struct {
	input *codecprovider.FormatContext
	video *StreamTranscoder
	audio *StreamTranscoder
	muxer *codecprovider.Muxer

	info *mediaprobe.MediaInfo

	apkts, vpkts int64
	startTime    time.Time
	counter      int
}

// Stats summarizes one finished (or aborted) run for the worker's exit
// log line.
type Stats struct {
	AudioPackets int64
	VideoPackets int64
	Elapsed      time.Duration
}

// Open re-opens the input (spec §4.E: "the transcode loop re-opens the
// input"), builds both stream transcoders, and builds the output muxer.
// On any failure it unwinds everything already opened.
func Open(path string, info *mediaprobe.MediaInfo, video VideoConfig, audio AudioConfig, format FormatConfig) (*Pipeline, error) {
	fc, err := codecprovider.OpenInput(path)
	if err != nil {
		return nil, err
	}

	_, vStream, hasVideo := codecprovider.FindFirstStream(fc, codecprovider.MediaTypeVideo)
	if !hasVideo {
		codecprovider.CloseInput(fc)
		return nil, errtax.NewApp("transcode.open", errtax.VideoStreamNotFound, nil)
	}
	vt, err := NewVideoStreamTranscoder(vStream, video)
	if err != nil {
		codecprovider.CloseInput(fc)
		return nil, err
	}

	// The output always carries exactly two streams (spec §4.F.4), so a
	// video-only input is a hard failure, not an optional path.
	if info.AudioIndex < 0 {
		vt.Close()
		codecprovider.CloseInput(fc)
		return nil, errtax.NewApp("transcode.open", errtax.AudioStreamNotFound, nil)
	}
	_, aStream, hasAudio := codecprovider.FindFirstStream(fc, codecprovider.MediaTypeAudio)
	if !hasAudio {
		vt.Close()
		codecprovider.CloseInput(fc)
		return nil, errtax.NewApp("transcode.open", errtax.AudioStreamNotFound, nil)
	}
	at, err := NewAudioStreamTranscoder(aStream, audio)
	if err != nil {
		vt.Close()
		codecprovider.CloseInput(fc)
		return nil, err
	}

	muxer, err := openOutput(format, vt, at)
	if err != nil {
		at.Close()
		vt.Close()
		codecprovider.CloseInput(fc)
		return nil, err
	}

	return &Pipeline{
		input: fc,
		video: vt,
		audio: at,
		muxer: muxer,
		info:  info,
	}, nil
}

// Close unwinds all owned resources (spec §4.G unwind order). Safe to call
// on a nil Pipeline.
func (p *Pipeline) Close() {
	if p == nil {
		return
	}
	p.muxer.Close()
	p.audio.Close()
	p.video.Close()
	codecprovider.CloseInput(p.input)
}

// Run drives the packet pump (spec §4.F.3) to completion. onStatus is
// invoked for every progress message and, after a successful trailer, once
// more with the status=1 FINISH terminal (spec §4.G: "on success the
// pipeline has already sent FINISH"). An onStatus failure aborts the run —
// a client that stopped reading gets no further work (spec §5).
func (p *Pipeline) Run(onStatus func(ProgressStatus) error) (Stats, error) {
	p.startTime = time.Now()
	totalPackets := p.info.AudioPackets + p.info.VideoPackets
	if totalPackets <= 0 {
		return p.stats(), errtax.NewApp("transcode.run", errtax.BufferTooSmall, nil)
	}

	pkt := codecprovider.AllocPacket()
	defer pkt.Free()

	for {
		if err := codecprovider.ReadPacket(p.input, pkt); err != nil {
			if errors.Is(err, codecprovider.ErrEOF) {
				break
			}
			return p.stats(), errtax.NewCodec("transcode.read_packet", 0, err)
		}
		switch pkt.StreamIndex() {
		case p.info.VideoIndex:
			if err := p.pumpVideo(pkt); err != nil {
				pkt.Unref()
				return p.stats(), err
			}
		case p.info.AudioIndex:
			if err := p.pumpAudio(pkt); err != nil {
				pkt.Unref()
				return p.stats(), err
			}
		}
		pkt.Unref()
		if err := p.emitProgress(totalPackets, onStatus); err != nil {
			return p.stats(), err
		}
	}

	if err := p.flush(p.video, VideoStreamIndex); err != nil {
		return p.stats(), err
	}
	if err := p.flush(p.audio, AudioStreamIndex); err != nil {
		return p.stats(), err
	}

	if err := p.muxer.WriteTrailer(); err != nil {
		return p.stats(), err
	}

	procMs := time.Since(p.startTime).Milliseconds()
	pct := int(((p.apkts + p.vpkts) * 100) / totalPackets)
	if err := onStatus(ProgressStatus{
		Status:        StatusFinished,
		StatusDesc:    "FINISH",
		ProcTimeMs:    procMs,
		TimeLeftMs:    estimateTimeLeftMs(procMs, pct),
		ProgressPct:   pct,
		AudioPktsRead: p.apkts,
		VideoPktsRead: p.vpkts,
	}); err != nil {
		return p.stats(), err
	}
	return p.stats(), nil
}

func (p *Pipeline) stats() Stats {
	return Stats{
		AudioPackets: p.apkts,
		VideoPackets: p.vpkts,
		Elapsed:      time.Since(p.startTime),
	}
}

// pumpVideo feeds one video packet through decode→(scale)→encode→mux
// (spec §4.F.3).
func (p *Pipeline) pumpVideo(pkt *codecprovider.Packet) error {
	p.vpkts++
	st := p.video
	if err := st.Decoder.SendPacket(pkt); err != nil {
		return errtax.NewCodec("transcode.pump_video.decode", 0, err)
	}
	for {
		if err := st.Decoder.ReceiveFrame(st.InFrame); err != nil {
			if drained(err) {
				break
			}
			return errtax.NewCodec("transcode.pump_video.receive", 0, err)
		}
		encFrame := st.InFrame
		if st.Scaler != nil {
			if err := st.Scaler.Scale(st.InFrame); err != nil {
				st.InFrame.Unref()
				return err
			}
			st.Scaler.Dst.SetPts(st.InFrame.Pts())
			encFrame = st.Scaler.Dst
		}
		if err := p.encodeAndMux(st, encFrame, VideoStreamIndex, true); err != nil {
			st.InFrame.Unref()
			return err
		}
		st.InFrame.Unref()
	}
	return nil
}

// pumpAudio feeds one audio packet through decode→encode→mux. There is no
// scaler path for audio (spec §4.F.3).
func (p *Pipeline) pumpAudio(pkt *codecprovider.Packet) error {
	p.apkts++
	st := p.audio
	if err := st.Decoder.SendPacket(pkt); err != nil {
		return errtax.NewCodec("transcode.pump_audio.decode", 0, err)
	}
	for {
		if err := st.Decoder.ReceiveFrame(st.InFrame); err != nil {
			if drained(err) {
				break
			}
			return errtax.NewCodec("transcode.pump_audio.receive", 0, err)
		}
		if err := p.encodeAndMux(st, st.InFrame, AudioStreamIndex, false); err != nil {
			st.InFrame.Unref()
			return err
		}
		st.InFrame.Unref()
	}
	return nil
}

// encodeAndMux feeds frame to st's encoder, drains every produced packet,
// and writes it to the muxer with the stream index fixed and duration/
// timestamps rescaled (spec §4.F.3).
func (p *Pipeline) encodeAndMux(st *StreamTranscoder, frame *codecprovider.Frame, streamIdx int, recomputeDuration bool) error {
	if err := st.Encoder.SendFrame(frame); err != nil {
		return errtax.NewCodec("transcode.encode", 0, err)
	}
	return p.drainEncoder(st, streamIdx, recomputeDuration)
}

// drainEncoder pulls every packet currently available from st's encoder.
func (p *Pipeline) drainEncoder(st *StreamTranscoder, streamIdx int, recomputeDuration bool) error {
	outPkt := codecprovider.AllocPacket()
	defer outPkt.Free()
	for {
		if err := st.Encoder.ReceivePacket(outPkt); err != nil {
			if drained(err) {
				return nil
			}
			return errtax.NewCodec("transcode.receive_packet", 0, err)
		}
		outPkt.SetStreamIndex(streamIdx)
		if recomputeDuration {
			inTB := st.InStream.TimeBase()
			outTB := st.OutStream.TimeBase()
			afr := st.InStream.AvgFrameRate()
			if d, ok := recomputePacketDuration(inTB.Den(), outTB.Num(), afr.Num(), afr.Den()); ok {
				outPkt.SetDuration(d)
			}
		}
		outPkt.RescaleTs(st.InStream.TimeBase(), st.OutStream.TimeBase())
		if err := p.muxer.WriteInterleaved(outPkt); err != nil {
			outPkt.Unref()
			return err
		}
		outPkt.Unref()
	}
}

// drained reports whether a receive-side error means "no more output right
// now" (needs more input, or the stream is fully flushed) rather than a
// real failure.
func drained(err error) bool {
	return errors.Is(err, codecprovider.ErrAgain) || errors.Is(err, codecprovider.ErrEOF)
}

// recomputePacketDuration implements the video-packet duration formula of
// spec §4.F.3, preserved verbatim from the source (spec §9 open question
// 3: "tb_den / out_tb_num / avg_fr_num * avg_fr_den", unclarified whether
// this is correct when input and output time bases differ). ok is false
// when outTBNum or afrNum is zero, guarding the division.
func recomputePacketDuration(inTBDen, outTBNum, afrNum, afrDen int) (int64, bool) {
	if outTBNum == 0 || afrNum == 0 {
		return 0, false
	}
	return int64(inTBDen / outTBNum / afrNum * afrDen), true
}

// flush sends a nil frame to drain the encoder fully at end of input. A
// second flush of an already-flushed encoder reports EOF on the send side,
// which is fine.
func (p *Pipeline) flush(st *StreamTranscoder, streamIdx int) error {
	if err := st.Encoder.SendFrame(nil); err != nil && !errors.Is(err, codecprovider.ErrEOF) {
		return errtax.NewCodec("transcode.flush", 0, err)
	}
	return p.drainEncoder(st, streamIdx, false)
}

// emitProgress implements spec §4.F.3's progress emission rule: emit only
// when the integer percent complete strictly advances.
func (p *Pipeline) emitProgress(totalPackets int64, onStatus func(ProgressStatus) error) error {
	pct, advanced := nextProgressPct(p.apkts, p.vpkts, totalPackets, p.counter)
	if !advanced {
		return nil
	}
	p.counter = pct
	procMs := time.Since(p.startTime).Milliseconds()
	return onStatus(ProgressStatus{
		Status:        StatusRunning,
		StatusDesc:    "TRANSCODING",
		ProcTimeMs:    procMs,
		TimeLeftMs:    estimateTimeLeftMs(procMs, pct),
		ProgressPct:   pct,
		AudioPktsRead: p.apkts,
		VideoPktsRead: p.vpkts,
	})
}

// nextProgressPct computes the integer percent complete (spec §4.F.3:
// "pct = ((apkts + vpkts) * 100) / (video_packets + audio_packets)") and
// reports whether it strictly advances past counter, the last-emitted
// value. totalPackets must be > 0; Pipeline.Run guards this before
// entering the loop.
func nextProgressPct(apkts, vpkts, totalPackets int64, counter int) (pct int, advanced bool) {
	pct = int(((apkts + vpkts) * 100) / totalPackets)
	return pct, pct > counter
}

// estimateTimeLeftMs implements spec §4.F.3's time_left_ms estimate:
// proc_time_ms * (100 - pct) / pct. Guarded at pct == 0 to avoid division
// by zero, returning 0 (no estimate available yet).
func estimateTimeLeftMs(procMs int64, pct int) int64 {
	if pct <= 0 {
		return 0
	}
	return procMs * int64(100-pct) / int64(pct)
}
