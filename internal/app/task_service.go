package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"teamspace/internal/model"
	"teamspace/internal/repository"
)

var ErrTaskNotFound = errors.New("task not found")

type TaskService struct {
	taskRepo    *repository.TaskRepository
	commentRepo *repository.CommentRepository
	members     MembershipChecker
	events      EventSink
}

type CreateTaskInput struct {
	UserID      uint
	WorkspaceID uint
	Title       string
	Description string
	AssigneeID  *uint
	DueDate     *time.Time
}

type UpdateTaskInput struct {
	UserID     uint
	TaskID     uint
	Title      *string
	Status     *string
	AssigneeID *uint
	DueDate    *time.Time
}

type CreateCommentInput struct {
	UserID uint
	TaskID uint
	Body   string
}

func NewTaskService(
	taskRepo *repository.TaskRepository,
	commentRepo *repository.CommentRepository,
	members MembershipChecker,
	events EventSink,
) *TaskService {
	return &TaskService{
		taskRepo:    taskRepo,
		commentRepo: commentRepo,
		members:     members,
		events:      events,
	}
}

func (s *TaskService) Create(ctx context.Context, input CreateTaskInput) (*model.Task, error) {
	if input.UserID == 0 || input.WorkspaceID == 0 {
		return nil, ErrInvalidInput
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrInvalidInput
	}

	isMember, err := s.members.IsMember(ctx, input.WorkspaceID, input.UserID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotWorkspaceMember
	}

	task := &model.Task{
		WorkspaceID: input.WorkspaceID,
		CreatorID:   input.UserID,
		AssigneeID:  input.AssigneeID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      model.TaskStatusOpen,
		DueDate:     input.DueDate,
	}
	if err := s.taskRepo.Create(task); err != nil {
		return nil, err
	}

	if task.AssigneeID != nil {
		s.publishTaskAssigned(ctx, task, input.UserID)
	}
	return task, nil
}

func (s *TaskService) List(ctx context.Context, userID, workspaceID uint, status string) ([]model.Task, error) {
	if userID == 0 || workspaceID == 0 {
		return nil, ErrInvalidInput
	}

	isMember, err := s.members.IsMember(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotWorkspaceMember
	}
	return s.taskRepo.ListByWorkspaceID(workspaceID, status)
}

func (s *TaskService) Update(ctx context.Context, input UpdateTaskInput) (*model.Task, error) {
	task, err := s.authorize(ctx, input.UserID, input.TaskID)
	if err != nil {
		return nil, err
	}

	assigneeChanged := false
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, ErrInvalidInput
		}
		task.Title = title
	}
	if input.Status != nil {
		switch *input.Status {
		case model.TaskStatusOpen, model.TaskStatusInProgress, model.TaskStatusDone:
			task.Status = *input.Status
		default:
			return nil, ErrInvalidInput
		}
	}
	if input.AssigneeID != nil {
		if task.AssigneeID == nil || *task.AssigneeID != *input.AssigneeID {
			assigneeChanged = true
		}
		task.AssigneeID = input.AssigneeID
	}
	if input.DueDate != nil {
		task.DueDate = input.DueDate
	}

	if err := s.taskRepo.Update(task); err != nil {
		return nil, err
	}

	if assigneeChanged {
		s.publishTaskAssigned(ctx, task, input.UserID)
	}
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, userID, taskID uint) error {
	task, err := s.authorize(ctx, userID, taskID)
	if err != nil {
		return err
	}

	if err := s.commentRepo.DeleteByTaskID(task.ID); err != nil {
		return err
	}
	return s.taskRepo.Delete(task.ID)
}

func (s *TaskService) CreateComment(ctx context.Context, input CreateCommentInput) (*model.Comment, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, ErrInvalidInput
	}

	task, err := s.authorize(ctx, input.UserID, input.TaskID)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{
		TaskID: task.ID,
		UserID: input.UserID,
		Body:   body,
	}
	if err := s.commentRepo.Create(comment); err != nil {
		return nil, err
	}

	if s.events != nil {
		workspaceID := task.WorkspaceID
		if _, err := s.events.Publish(ctx, PublishEventInput{
			Type: "comment_added",
			Data: map[string]any{
				"task_id":      task.ID,
				"comment_id":   comment.ID,
				"author_id":    input.UserID,
				"workspace_id": workspaceID,
			},
			WorkspaceID: &workspaceID,
		}); err != nil {
			log.Printf("publish comment_added event failed: %v", err)
		}
	}
	return comment, nil
}

func (s *TaskService) ListComments(ctx context.Context, userID, taskID uint, limit int) ([]model.Comment, error) {
	if _, err := s.authorize(ctx, userID, taskID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByTaskID(taskID, limit)
}

func (s *TaskService) authorize(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	if userID == 0 || taskID == 0 {
		return nil, ErrInvalidInput
	}

	task, err := s.taskRepo.GetByID(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	isMember, err := s.members.IsMember(ctx, task.WorkspaceID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotWorkspaceMember
	}
	return task, nil
}

func (s *TaskService) publishTaskAssigned(ctx context.Context, task *model.Task, assignedBy uint) {
	if s.events == nil || task.AssigneeID == nil {
		return
	}
	if _, err := s.events.Publish(ctx, PublishEventInput{
		Type: "task_assigned",
		Data: map[string]any{
			"task_id":      task.ID,
			"title":        task.Title,
			"workspace_id": task.WorkspaceID,
			"assigned_by":  assignedBy,
		},
		TargetUserID: task.AssigneeID,
	}); err != nil {
		log.Printf("publish task_assigned event failed: %v", err)
	}
}
