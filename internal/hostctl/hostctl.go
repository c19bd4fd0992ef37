// Package hostctl assembles and sends the meeting owner's control
// commands. Commands are fire-and-forget: the server enforces whether the
// actor is actually a host, and no acknowledgment is awaited.
package hostctl

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/voxmeet/sfuclient/internal/signal"
)

var (
	// ErrNotReady is returned when the actor identity or the signaling
	// channel is missing or disconnected.
	ErrNotReady = errors.New("hostctl: no actor or signaling channel")
)

// ConfirmFunc asks the user to confirm a destructive action.
type ConfirmFunc func(prompt string) bool

// Controller sends host commands for one room on behalf of one actor.
type Controller struct {
	ch      signal.Channel
	roomID  string
	actorID string
	confirm ConfirmFunc
	log     *zap.Logger
}

func NewController(ch signal.Channel, roomID, actorID string, confirm ConfirmFunc, logger *zap.Logger) *Controller {
	if confirm == nil {
		confirm = func(string) bool { return true }
	}
	return &Controller{
		ch:      ch,
		roomID:  roomID,
		actorID: actorID,
		confirm: confirm,
		log:     logger.Named("hostctl"),
	}
}

func (c *Controller) ready() error {
	if c.actorID == "" || c.ch == nil || !c.ch.Connected() {
		return ErrNotReady
	}
	return nil
}

// ToggleRemoteAudio flips one participant's microphone: muted when they
// are currently audible, unmuted otherwise.
func (c *Controller) ToggleRemoteAudio(targetID string, currentlyMuted bool) error {
	if err := c.ready(); err != nil {
		return err
	}
	force := "mute"
	if currentlyMuted {
		force = "unmute"
	}
	err := c.ch.Notify(signal.MethodToggleRemoteAudio, signal.ToggleRemoteAudioCommand{
		RoomID:       c.roomID,
		UserID:       c.actorID,
		TargetUserID: targetID,
		Force:        force,
	})
	if err != nil {
		return fmt.Errorf("hostctl: toggle remote audio: %w", err)
	}
	c.log.Info("sent toggle-remote-audio", zap.String("target", targetID), zap.String("force", force))
	return nil
}

// ToggleRemoteVideo flips one participant's camera.
func (c *Controller) ToggleRemoteVideo(targetID string, currentlyPaused bool) error {
	if err := c.ready(); err != nil {
		return err
	}
	force := "pause"
	if currentlyPaused {
		force = "unpause"
	}
	err := c.ch.Notify(signal.MethodToggleRemoteVideo, signal.ToggleRemoteVideoCommand{
		RoomID:       c.roomID,
		UserID:       c.actorID,
		TargetUserID: targetID,
		Force:        force,
	})
	if err != nil {
		return fmt.Errorf("hostctl: toggle remote video: %w", err)
	}
	c.log.Info("sent toggle-remote-video", zap.String("target", targetID), zap.String("force", force))
	return nil
}

// RemoveParticipant ejects targetID from the meeting after an interactive
// confirmation. Declining the confirmation sends nothing.
func (c *Controller) RemoveParticipant(targetID, targetName string) error {
	if err := c.ready(); err != nil {
		return err
	}
	prompt := fmt.Sprintf("Are you sure you want to remove %s from this meeting?", targetName)
	if !c.confirm(prompt) {
		c.log.Debug("remove-participant declined", zap.String("target", targetID))
		return nil
	}
	err := c.ch.Notify(signal.MethodRemoveParticipant, signal.RemoveParticipantCommand{
		RoomID:       c.roomID,
		UserID:       c.actorID,
		TargetUserID: targetID,
	})
	if err != nil {
		return fmt.Errorf("hostctl: remove participant: %w", err)
	}
	c.log.Info("sent remove-participant", zap.String("target", targetID))
	return nil
}

func (c *Controller) MuteAllParticipants() error {
	return c.roomCommand(signal.MethodMuteAllParticipants)
}

func (c *Controller) UnmuteAllParticipants() error {
	return c.roomCommand(signal.MethodUnmuteAllParticipants)
}

func (c *Controller) DisableAllCameras() error {
	return c.roomCommand(signal.MethodDisableAllCameras)
}

func (c *Controller) EnableAllCameras() error {
	return c.roomCommand(signal.MethodEnableAllCameras)
}

func (c *Controller) DisableAllScreenSharing() error {
	return c.roomCommand(signal.MethodDisableAllScreenSharing)
}

func (c *Controller) EnableAllScreenSharing() error {
	return c.roomCommand(signal.MethodEnableAllScreenSharing)
}

func (c *Controller) roomCommand(method string) error {
	if err := c.ready(); err != nil {
		return err
	}
	err := c.ch.Notify(method, signal.RoomCommand{
		RoomID: c.roomID,
		UserID: c.actorID,
	})
	if err != nil {
		return fmt.Errorf("hostctl: %s: %w", method, err)
	}
	c.log.Info("sent host command", zap.String("method", method))
	return nil
}
