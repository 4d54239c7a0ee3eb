package gateway

import (
	"context"
	"fmt"
	"net/url"
)

// Projects -----------------------------------------------------------------

// LatestProject returns the signed-in user's most recent project reference.
// ErrNotFound means the user has no projects yet.
func (c *Client) LatestProject(ctx context.Context) (ProjectRef, error) {
	var ref ProjectRef
	if err := c.get(ctx, "/api/user/latest-project", &ref); err != nil {
		return ProjectRef{}, err
	}
	if ref.ID == "" {
		return ProjectRef{}, ErrNotFound
	}
	return ref, nil
}

func (c *Client) Project(ctx context.Context, id string) (Project, error) {
	var p Project
	err := c.get(ctx, "/api/projects/"+url.PathEscape(id), &p)
	return p, err
}

// TransitionProject advances a project to active or rejected on the server.
// The local copy is a cache; callers refetch after this returns.
func (c *Client) TransitionProject(ctx context.Context, id, status, message string) error {
	body := map[string]string{"status": status}
	if message != "" {
		body["message"] = message
	}
	return c.patch(ctx, "/api/projects/"+url.PathEscape(id)+"/status", body, nil)
}

// Tasks --------------------------------------------------------------------

func (c *Client) Tasks(ctx context.Context, projectID string) ([]Task, error) {
	var tasks []Task
	err := c.get(ctx, "/api/projects/"+url.PathEscape(projectID)+"/tasks", &tasks)
	return tasks, err
}

// PatchTaskVerification persists the full verification set for a task.
func (c *Client) PatchTaskVerification(ctx context.Context, taskID string, types []string) error {
	return c.patch(ctx, "/api/tasks/"+url.PathEscape(taskID)+"/verification",
		map[string]any{"verificationRequests": types}, nil)
}

// PatchTaskStatus persists a status transition. Client-side date stamps are
// display-only; the server remains authoritative on the next fetch.
func (c *Client) PatchTaskStatus(ctx context.Context, taskID, status string) error {
	return c.patch(ctx, "/api/tasks/"+url.PathEscape(taskID),
		map[string]string{"status": status}, nil)
}

// ReviewTask approves or rejects a completed task.
func (c *Client) ReviewTask(ctx context.Context, taskID string, approve bool, message string) error {
	body := map[string]any{"approved": approve}
	if message != "" {
		body["message"] = message
	}
	return c.post(ctx, "/api/tasks/"+url.PathEscape(taskID)+"/review", body, nil)
}

// Quote --------------------------------------------------------------------

func (c *Client) Quote(ctx context.Context, projectID string) (Quote, error) {
	var q Quote
	err := c.get(ctx, "/api/quotes/project/"+url.PathEscape(projectID), &q)
	return q, err
}

func (c *Client) AddQuoteProduct(ctx context.Context, projectID, productID string, quantity int) error {
	return c.post(ctx, "/api/quotes/project/"+url.PathEscape(projectID)+"/products",
		map[string]any{"productId": productID, "quantity": quantity}, nil)
}

func (c *Client) RemoveQuoteProduct(ctx context.Context, projectID, productID string) error {
	return c.delete(ctx, fmt.Sprintf("/api/quotes/project/%s/products/%s",
		url.PathEscape(projectID), url.PathEscape(productID)))
}

func (c *Client) AddQuoteMaterial(ctx context.Context, projectID string, m Material) error {
	return c.post(ctx, "/api/quotes/project/"+url.PathEscape(projectID)+"/materials", m, nil)
}

func (c *Client) RemoveQuoteMaterial(ctx context.Context, projectID, materialID string) error {
	return c.delete(ctx, fmt.Sprintf("/api/quotes/project/%s/materials/%s",
		url.PathEscape(projectID), url.PathEscape(materialID)))
}

// Catalog ------------------------------------------------------------------

// Products lists the catalog, optionally filtered by category.
func (c *Client) Products(ctx context.Context, category string) ([]Product, error) {
	path := "/api/products"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	var products []Product
	err := c.get(ctx, path, &products)
	return products, err
}

// Profile ------------------------------------------------------------------

func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var p Profile
	err := c.get(ctx, "/api/profile", &p)
	return p, err
}

func (c *Client) UpdateProfile(ctx context.Context, p Profile) error {
	return c.put(ctx, "/api/profile", p, nil)
}

// Notifications / change orders --------------------------------------------

func (c *Client) Notifications(ctx context.Context) ([]Notification, error) {
	var items []Notification
	err := c.get(ctx, "/api/notifications", &items)
	return items, err
}

func (c *Client) ChangeOrders(ctx context.Context, projectID string) ([]ChangeOrder, error) {
	var items []ChangeOrder
	err := c.get(ctx, "/api/projects/"+url.PathEscape(projectID)+"/change-orders", &items)
	return items, err
}

func (c *Client) ApproveChangeOrder(ctx context.Context, id string) error {
	return c.post(ctx, "/api/change-orders/"+url.PathEscape(id)+"/approve", nil, nil)
}

// Conversations ------------------------------------------------------------

// The REST layer is the system of record for chat history; the realtime
// channel is a live-append supplement.

func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var items []Conversation
	err := c.get(ctx, "/api/conversations", &items)
	return items, err
}

func (c *Client) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	var items []Message
	err := c.get(ctx, "/api/conversations/"+url.PathEscape(conversationID)+"/messages", &items)
	return items, err
}

// Vendor -------------------------------------------------------------------

func (c *Client) CreateVendorService(ctx context.Context, svc VendorService) (VendorService, error) {
	var out VendorService
	err := c.post(ctx, "/api/vendor/services", svc, &out)
	return out, err
}

func (c *Client) UpdateVendorService(ctx context.Context, svc VendorService) error {
	return c.put(ctx, "/api/vendor/services/"+url.PathEscape(svc.ID), svc, nil)
}

func (c *Client) DeleteVendorService(ctx context.Context, id string) error {
	return c.delete(ctx, "/api/vendor/services/"+url.PathEscape(id))
}

func (c *Client) CreateVendorProduct(ctx context.Context, p Product) (Product, error) {
	var out Product
	err := c.post(ctx, "/api/vendor/products", p, &out)
	return out, err
}

func (c *Client) UpdateVendorProduct(ctx context.Context, p Product) error {
	return c.put(ctx, "/api/vendor/products/"+url.PathEscape(p.ID), p, nil)
}

func (c *Client) DeleteVendorProduct(ctx context.Context, id string) error {
	return c.delete(ctx, "/api/vendor/products/"+url.PathEscape(id))
}

func (c *Client) CreateMarketingPlan(ctx context.Context, plan MarketingPlan) (MarketingPlan, error) {
	var out MarketingPlan
	err := c.post(ctx, "/api/vendor/marketing-plans", plan, &out)
	return out, err
}
