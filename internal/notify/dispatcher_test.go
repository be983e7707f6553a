package notify_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/fieldops/internal/config"
	"github.com/smallbiznis/fieldops/internal/notify"
	"github.com/smallbiznis/fieldops/internal/notify/mocks"
	"github.com/smallbiznis/fieldops/internal/serviceorder/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newDispatcher(sender notify.Sender, queueSize, workers int) *notify.Dispatcher {
	return notify.NewDispatcher(notify.Params{
		Config: config.Config{Notify: config.NotifyConfig{QueueSize: queueSize, Workers: workers}},
		Log:    zap.NewNop(),
		Sender: sender,
	})
}

func TestDispatcherDeliversQueuedMessages(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().Name().Return("mock").AnyTimes()

	techID := snowflake.ID(7)
	svc := domain.ServiceOrder{ID: 1001, TechnicianID: &techID}
	sender.EXPECT().Send(gomock.Any(), notify.Message{
		ServiceID:    1001,
		From:         domain.StatusInProgress,
		To:           domain.StatusCompleted,
		TechnicianID: &techID,
	}).Return(nil).Times(1)

	d := newDispatcher(sender, 4, 1)
	d.Start()
	require.NoError(t, d.OnStatusChange(context.Background(), svc, domain.StatusInProgress, domain.StatusCompleted))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
}

func TestDispatcherReportsFullQueue(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().Name().Return("mock").AnyTimes()

	d := newDispatcher(sender, 1, 1)
	ctx := context.Background()
	svc := domain.ServiceOrder{ID: 1}

	require.NoError(t, d.OnStatusChange(ctx, svc, domain.StatusPending, domain.StatusAssigned))
	err := d.OnStatusChange(ctx, svc, domain.StatusAssigned, domain.StatusScheduled)
	assert.ErrorIs(t, err, notify.ErrQueueFull)

	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil).Times(1)
	d.Start()
	require.NoError(t, d.Stop(ctx))
}

func TestDispatcherSurvivesSenderFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().Name().Return("mock").AnyTimes()
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("boom"))
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil)

	d := newDispatcher(sender, 4, 1)
	d.Start()
	ctx := context.Background()
	require.NoError(t, d.Enqueue(ctx, notify.Message{ServiceID: 1}))
	require.NoError(t, d.Enqueue(ctx, notify.Message{ServiceID: 2}))
	require.NoError(t, d.Stop(ctx))
}

func TestDispatcherRejectsAfterStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	sender.EXPECT().Name().Return("mock").AnyTimes()

	d := newDispatcher(sender, 0, 0)
	d.Start()
	require.NoError(t, d.Stop(context.Background()))
	assert.ErrorIs(t, d.Enqueue(context.Background(), notify.Message{ServiceID: 1}), notify.ErrStopped)
	require.NoError(t, d.Stop(context.Background()))
}
