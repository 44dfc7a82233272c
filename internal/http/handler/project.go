package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Minhal128/CodeX/common/logger"
	"github.com/Minhal128/CodeX/internal/filetree"
	"github.com/Minhal128/CodeX/internal/http/dto"
	"github.com/Minhal128/CodeX/internal/service"
)

type ProjectHandler struct {
	projectService service.ProjectService
	messageService service.MessageService
}

func NewProjectHandler(projectService service.ProjectService, messageService service.MessageService) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		messageService: messageService,
	}
}

func (h *ProjectHandler) Get(c *gin.Context) {
	projectID := c.Param("id")
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{ProjectID: logger.Ptr(projectID)})

	project, err := h.projectService.GetProject(ctx, projectID)
	if err != nil {
		respondError(c, err, "failed to get project")
		return
	}
	c.JSON(http.StatusOK, dto.ToProjectEnvelope(project))
}

func (h *ProjectHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var tree filetree.Tree
	if req.FileTree != nil {
		tree = *req.FileTree
	}

	project, err := h.projectService.Create(ctx, req.Name, req.OwnerID, tree)
	if err != nil {
		respondError(c, err, "failed to create project")
		return
	}
	c.JSON(http.StatusCreated, dto.ToProjectEnvelope(project))
}

func (h *ProjectHandler) SaveFileTree(c *gin.Context) {
	projectID := c.Param("id")
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{ProjectID: logger.Ptr(projectID)})

	var req dto.SaveFileTreeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid file tree body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ProjectID != "" && req.ProjectID != projectID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "projectId does not match the URL"})
		return
	}

	if err := h.projectService.SaveFileTree(ctx, projectID, *req.FileTree); err != nil {
		respondError(c, err, "failed to save file tree")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ProjectHandler) AddCollaborators(c *gin.Context) {
	projectID := c.Param("id")
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{ProjectID: logger.Ptr(projectID)})

	var req dto.AddCollaboratorsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid collaborators body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ProjectID != "" && req.ProjectID != projectID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "projectId does not match the URL"})
		return
	}

	project, err := h.projectService.AddCollaborators(ctx, projectID, req.Users)
	if err != nil {
		respondError(c, err, "failed to add collaborators")
		return
	}
	c.JSON(http.StatusOK, dto.ToProjectEnvelope(project))
}

func (h *ProjectHandler) PostMessage(c *gin.Context) {
	projectID := c.Param("id")
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{ProjectID: logger.Ptr(projectID)})

	var req dto.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid message body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.messageService.Post(ctx, projectID, req.ToModel()); err != nil {
		respondError(c, err, "failed to post message")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "published"})
}
