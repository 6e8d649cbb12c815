package browser

// probeScript is the instrumentation bundle installed into a session before
// playback starts. It keeps one per-session state record fed by two
// producers: native media events, and a one-second sampler whose recomputed
// isPlaying is authoritative because autoplay quirks can desynchronize event
// firing from actual element state. The sampler also counts a buffering event
// when playback has not advanced for longer than the configured threshold
// while the element claims to be playing, covering stalls that fire no
// "waiting" event. The outside controller only ever reads snapshots.
//
// The single %d placeholder is the buffering threshold in milliseconds.
const probeScript = `(() => {
	if (window.__vswarmProbe) {
		return;
	}
	const state = {
		isPlaying: false,
		currentTime: 0,
		previousTime: 0,
		stalledCount: 0,
		bufferingCount: 0,
		errors: [],
		readyState: 0,
	};
	const video = document.querySelector('video');
	if (!video) {
		state.errors.push('No video element found');
	} else {
		video.addEventListener('playing', () => { state.isPlaying = true; });
		video.addEventListener('pause', () => { state.isPlaying = false; });
		video.addEventListener('waiting', () => { state.bufferingCount++; });
		video.addEventListener('stalled', () => { state.stalledCount++; });
		video.addEventListener('error', () => {
			const err = video.error;
			state.errors.push(err && err.message ? err.message : 'media error');
		});
		let lastAdvanceAt = Date.now();
		setInterval(() => {
			state.previousTime = state.currentTime;
			state.currentTime = video.currentTime;
			state.readyState = video.readyState;
			state.isPlaying = !video.paused && !video.ended && video.readyState >= 3;
			if (state.currentTime > state.previousTime) {
				lastAdvanceAt = Date.now();
			} else if (state.isPlaying && Date.now() - lastAdvanceAt > %d) {
				state.bufferingCount++;
				lastAdvanceAt = Date.now();
			}
		}, 1000);
	}
	window.__vswarmProbe = {
		snapshot: () => ({
			isPlaying: state.isPlaying,
			currentTime: state.currentTime,
			previousTime: state.previousTime,
			stalledCount: state.stalledCount,
			bufferingCount: state.bufferingCount,
			errors: state.errors.slice(),
			readyState: state.readyState,
		}),
	};
})()`

// readProbeScript throws when the probe was never installed so the read
// surfaces as an execution error rather than a zero-value snapshot.
const readProbeScript = `(() => {
	if (!window.__vswarmProbe) {
		throw new Error('Monitor not initialized');
	}
	return window.__vswarmProbe.snapshot();
})()`

// startPlaybackScript attempts muted playback; a rejected play() promise is
// swallowed in-page and treated as "not yet playing".
const startPlaybackScript = `(() => {
	const video = document.querySelector('video');
	if (video) {
		video.muted = true;
		const p = video.play();
		if (p && p.catch) {
			p.catch(() => {});
		}
	}
})()`
