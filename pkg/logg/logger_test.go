package logg

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestFormatIncludesLevelAndMessage(t *testing.T) {
	f := &CommonLogFormatter{pid: 42}
	e := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "part drained",
		Data:    logrus.Fields{},
	}

	out, err := f.Format(e)
	assert.Nil(t, err)
	assert.Equal(t, "2024-01-02 03:04:05.000000 42 WARNING part drained \n", string(out))
}

func TestFormatAppendsData(t *testing.T) {
	f := &CommonLogFormatter{pid: 1}
	e := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    time.Unix(0, 0).UTC(),
		Level:   logrus.ErrorLevel,
		Message: "upload failed",
		Data:    logrus.Fields{"error": errors.New("boom")},
	}

	out, err := f.Format(e)
	assert.Nil(t, err)
	assert.Contains(t, string(out), "ERROR upload failed")
	assert.Contains(t, string(out), "map[error:boom]")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logrus.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, logrus.WarnLevel, ParseLevel("WARN"))
	assert.Equal(t, logrus.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("info"))
	assert.Equal(t, logrus.InfoLevel, ParseLevel("verbose"))
}

func TestLoggersUsableWithoutInit(t *testing.T) {
	assert.NotNil(t, Dlog)
	assert.NotNil(t, Dhttplog)
	SetLevel(logrus.DebugLevel)
	InitLogger()
	assert.Equal(t, logrus.DebugLevel, Dlog.Level)
	SetLevel(logrus.InfoLevel)
	InitLogger()
}
