package api

import (
	"fmt"
	"io"

	"docvault/app/middleware"
	"docvault/service"
	"docvault/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type DocumentHandler struct {
	docs *service.DocumentService
}

func NewDocumentHandler(docs *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		docs: docs,
	}
}

func (h *DocumentHandler) HandleUpload(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return ErrUnAuthorized("missing user identity")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	doc, err := h.docs.Upload(c.Context(), userID, service.UploadParams{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Tags:        c.FormValue("tags"),
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(doc)
}

func (h *DocumentHandler) HandleList(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return ErrUnAuthorized("missing user identity")
	}

	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", service.DefaultPageSize)

	list, err := h.docs.List(c.Context(), userID, page, pageSize)
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (h *DocumentHandler) HandleGet(c *fiber.Ctx) error {
	userID, docID, err := h.identify(c)
	if err != nil {
		return err
	}

	doc, err := h.docs.Get(c.Context(), docID, userID)
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

func (h *DocumentHandler) HandleChunks(c *fiber.Ctx) error {
	userID, docID, err := h.identify(c)
	if err != nil {
		return err
	}

	chunks, err := h.docs.Chunks(c.Context(), docID, userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"document_id": docID,
		"chunks":      chunks,
		"total":       len(chunks),
	})
}

func (h *DocumentHandler) HandleUpdate(c *fiber.Ctx) error {
	userID, docID, err := h.identify(c)
	if err != nil {
		return err
	}

	var params types.UpdateDocumentParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if params.Empty() {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	doc, err := h.docs.Update(c.Context(), docID, userID, params)
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

func (h *DocumentHandler) HandleDelete(c *fiber.Ctx) error {
	userID, docID, err := h.identify(c)
	if err != nil {
		return err
	}

	if err := h.docs.Delete(c.Context(), docID, userID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"deleted": docID})
}

func (h *DocumentHandler) HandleDownload(c *fiber.Ctx) error {
	userID, docID, err := h.identify(c)
	if err != nil {
		return err
	}

	doc, data, err := h.docs.Download(c.Context(), docID, userID)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, doc.MimeType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", doc.OriginalFilename))
	return c.Send(data)
}

func (h *DocumentHandler) HandleDownloadURL(c *fiber.Ctx) error {
	userID, docID, err := h.identify(c)
	if err != nil {
		return err
	}

	url, err := h.docs.PresignedURL(c.Context(), docID, userID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"url": url})
}

func (h *DocumentHandler) HandleReprocess(c *fiber.Ctx) error {
	userID, docID, err := h.identify(c)
	if err != nil {
		return err
	}

	doc, err := h.docs.Reprocess(c.Context(), docID, userID)
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

// identify pulls the authenticated user and the document id from the
// request path.
func (h *DocumentHandler) identify(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, ErrUnAuthorized("missing user identity")
	}
	docID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrInvalidID()
	}
	return userID, docID, nil
}
