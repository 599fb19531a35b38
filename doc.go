// Package ytlinks resolves YouTube videos into catalogs of directly
// fetchable stream URLs.
//
// Features:
//   - Watch page analysis with blocked and not-found detection
//   - A single fallback query through get_video_info or innertube
//   - Signature deciphering compiled from the player script, cached per script
//   - Stream catalogs with video, audio and combined views and quality splits
//   - Optional download of a selected stream
package ytlinks
