package recorder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"streamwatch/internal/logging"
	"streamwatch/internal/tiktok"
)

const (
	categoryComments = "comments"
	categoryGifts    = "gifts"
	categoryFollows  = "follows"
	categoryShares   = "shares"
	categoryJoins    = "joins"
	categoryUnknown  = "unknown"
)

var sinkHeaders = map[string][]string{
	categoryComments: {"timestamp", "user_id", "nickname", "comment", "follower_count"},
	categoryGifts:    {"timestamp", "user_id", "nickname", "gift_name", "repeat_count", "streakable", "streaking"},
	categoryFollows:  {"timestamp", "user_id", "nickname", "follow_count", "share_type", "action"},
	categoryShares:   {"timestamp", "user_id", "nickname", "share_type", "share_target", "share_count", "users_joined", "action"},
	categoryJoins:    {"timestamp", "user_id", "nickname", "count", "is_top_user", "enter_type", "action", "user_share_type", "client_enter_source"},
}

var sinkOrder = []string{categoryComments, categoryGifts, categoryFollows, categoryShares, categoryJoins}

// sessionSinks owns the six output files of one session: five typed CSV
// sinks plus the video artifact, all sharing one timestamp-derived stem so
// rows and footage join exactly per recording.
type sessionSinks struct {
	stem      string
	videoPath string

	// closeMu serializes the graceful close against the force path that
	// fires when finalization exceeds its hard timeout.
	closeMu sync.Mutex
	files   map[string]*csvSink

	video     *os.File
	videoSrc  io.ReadCloser
	videoDone chan struct{}
}

type csvSink struct {
	file   *os.File
	writer *csv.Writer
}

// Stem builds the shared file name stem for one account and start time.
func Stem(account string, startedAt time.Time) string {
	return fmt.Sprintf("%s_%s", account, startedAt.Format("20060102_150405"))
}

func openSinks(outputDir, account string, startedAt time.Time) (*sessionSinks, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	stem := Stem(account, startedAt)
	sinks := &sessionSinks{
		stem:      stem,
		videoPath: filepath.Join(outputDir, stem+".mp4"),
		files:     make(map[string]*csvSink, len(sinkOrder)),
	}

	for _, category := range sinkOrder {
		path := filepath.Join(outputDir, fmt.Sprintf("%s_%s.csv", stem, category))
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
		if err != nil {
			sinks.forceClose()
			return nil, fmt.Errorf("open %s sink: %w", category, err)
		}
		writer := csv.NewWriter(file)
		if err := writer.Write(sinkHeaders[category]); err != nil {
			file.Close()
			sinks.forceClose()
			return nil, fmt.Errorf("write %s header: %w", category, err)
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			file.Close()
			sinks.forceClose()
			return nil, fmt.Errorf("flush %s header: %w", category, err)
		}
		sinks.files[category] = &csvSink{file: file, writer: writer}
	}

	return sinks, nil
}

// startVideo opens the raw broadcast stream and copies it to the video file
// in the background. A video failure does not abort the session; the event
// sinks keep recording and the problem is logged.
func (s *sessionSinks) startVideo(conn tiktok.Conn, logger *slog.Logger) {
	src, err := conn.Video()
	if err != nil {
		logger.Warn("video stream unavailable; recording events only", logging.Error(err))
		s.videoPath = ""
		return
	}

	file, err := os.OpenFile(s.videoPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		logger.Warn("video file open failed; recording events only", logging.Error(err))
		_ = src.Close()
		s.videoPath = ""
		return
	}

	s.video = file
	s.videoSrc = src
	s.videoDone = make(chan struct{})
	go func() {
		defer close(s.videoDone)
		if _, err := io.Copy(file, src); err != nil {
			logger.Debug("video copy ended", logging.Error(err))
		}
	}()
}

// route classifies one event into exactly one category and appends it to
// the matching sink. Unrecognized events are counted but never written, so
// a typed file is never polluted with rows of another shape. The returned
// category feeds the session counters.
func (s *sessionSinks) route(event tiktok.Event) (string, error) {
	now := time.Now().Format(time.RFC3339)

	switch ev := event.(type) {
	case tiktok.CommentEvent:
		return categoryComments, s.append(categoryComments, []string{
			now, ev.User.UniqueID, ev.User.Nickname, ev.Comment,
			strconv.FormatInt(ev.User.FollowerCount, 10),
		})
	case tiktok.GiftEvent:
		return categoryGifts, s.append(categoryGifts, []string{
			now, ev.User.UniqueID, ev.User.Nickname, ev.GiftName,
			strconv.Itoa(ev.RepeatCount),
			strconv.FormatBool(ev.Streakable),
			strconv.FormatBool(ev.Streaking),
		})
	case tiktok.FollowEvent:
		return categoryFollows, s.append(categoryFollows, []string{
			now, ev.User.UniqueID, ev.User.Nickname,
			strconv.FormatInt(ev.FollowCount, 10),
			strconv.Itoa(ev.ShareType),
			strconv.Itoa(ev.Action),
		})
	case tiktok.ShareEvent:
		return categoryShares, s.append(categoryShares, []string{
			now, ev.User.UniqueID, ev.User.Nickname,
			strconv.Itoa(ev.ShareType), ev.ShareTarget,
			strconv.Itoa(ev.ShareCount),
			strconv.Itoa(ev.UsersJoined),
			strconv.Itoa(ev.Action),
		})
	case tiktok.JoinEvent:
		return categoryJoins, s.append(categoryJoins, []string{
			now, ev.User.UniqueID, ev.User.Nickname,
			strconv.Itoa(ev.Count),
			strconv.FormatBool(ev.IsTopUser),
			strconv.Itoa(ev.EnterType),
			strconv.Itoa(ev.Action),
			ev.UserShareType, ev.ClientEnterSource,
		})
	default:
		return categoryUnknown, nil
	}
}

func (s *sessionSinks) append(category string, row []string) error {
	sink := s.files[category]
	if err := sink.writer.Write(row); err != nil {
		return fmt.Errorf("append %s row: %w", category, err)
	}
	// Flush per event so a crash loses at most the in-flight row.
	sink.writer.Flush()
	if err := sink.writer.Error(); err != nil {
		return fmt.Errorf("flush %s sink: %w", category, err)
	}
	return nil
}

// detach transfers ownership of all open resources to the caller so that
// exactly one closer acts on each, with no lock held while closing.
func (s *sessionSinks) detach() (io.ReadCloser, *os.File, chan struct{}, map[string]*csvSink) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	src, video, done, files := s.videoSrc, s.video, s.videoDone, s.files
	s.videoSrc = nil
	s.video = nil
	s.files = map[string]*csvSink{}
	return src, video, done, files
}

// closeAll flushes and closes every sink, waiting for the video copy to
// drain after its source is closed.
func (s *sessionSinks) closeAll() error {
	src, video, done, files := s.detach()

	var errs []error
	if src != nil {
		if err := src.Close(); err != nil {
			errs = append(errs, err)
		}
		<-done
	}
	if video != nil {
		if err := video.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	for category, sink := range files {
		sink.writer.Flush()
		if err := sink.writer.Error(); err != nil {
			errs = append(errs, fmt.Errorf("flush %s sink: %w", category, err))
		}
		if err := sink.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s sink: %w", category, err))
		}
	}

	return errors.Join(errs...)
}

// forceClose abandons buffered data and closes whatever is still owned
// here. Used when the graceful path timed out or failed mid-setup; if the
// graceful close already detached the resources this is a no-op.
func (s *sessionSinks) forceClose() {
	src, video, _, files := s.detach()

	if src != nil {
		_ = src.Close()
	}
	if video != nil {
		_ = video.Close()
	}
	for _, sink := range files {
		_ = sink.file.Close()
	}
}
